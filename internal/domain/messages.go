package domain

// Реакции, которыми управляются сообщения бота.
const (
	ReactionPrevious = "👈"
	ReactionNext     = "👉"
	ReactionReroll   = "🔁"
)

// Embed — оформленный блок сообщения.
type Embed struct {
	Title       string
	Description string
	Footer      string
	URL         string
}

// MessageContent — то, что передаётся платформе для отправки или редактирования.
type MessageContent struct {
	Text  string
	Embed *Embed
}

// IsEmpty сообщает, что отправлять нечего.
func (c MessageContent) IsEmpty() bool {
	return c.Text == "" && c.Embed == nil
}

// OutgoingMessage описывает результат действия: что и куда отправить.
type OutgoingMessage struct {
	SourceType CommandType
	User       *User
	Origin     MessageRef
	Target     MessageRef

	Text       string
	Embed      *Embed
	Reactions  []string
	Diagnostic string
	Errors     []string

	// Empty означает, что действие отработало без ответа пользователю.
	Empty bool
	// StopChain прерывает исполнение оставшихся команд цепочки.
	StopChain bool
	// Reemit содержит цепочки, которые нужно выполнить позже.
	Reemit []CommandChain
}

// Content возвращает основное содержимое сообщения.
func (m OutgoingMessage) Content() MessageContent {
	return MessageContent{Text: m.Text, Embed: m.Embed}
}

// Fail заполняет сообщение об ошибке и останавливает цепочку.
func (m *OutgoingMessage) Fail(text string) {
	m.Text = text
	m.Empty = false
	m.StopChain = true
}

// InboundMessage — входящее сообщение пользователя, уже отвязанное от платформы.
type InboundMessage struct {
	Ref           MessageRef
	ServerID      string
	AuthorID      string
	AuthorName    string
	AuthorIsAdmin bool
	Content       string
}

// InboundReaction — реакция пользователя на сообщение бота.
type InboundReaction struct {
	Ref      MessageRef
	ServerID string
	UserID   string
	Emoji    string
}

// TrackedMessage хранит, какое сообщение бота и для кого можно листать реакциями.
type TrackedMessage struct {
	UserID   string      `json:"user_id"`
	ServerID string      `json:"server_id"`
	Type     CommandType `json:"type"`
}
