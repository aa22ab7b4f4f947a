package domain

// CommandType перечисляет виды команд, которые умеет исполнять бот.
type CommandType int

const (
	CommandNull CommandType = iota
	CommandTimeoutActive
	CommandNoUserFFN
	CommandFillRecommendations
	CommandDisplayPage
	CommandDisplayRng
	CommandDisplayHelp
	CommandSetFandoms
	CommandIgnoreFandoms
	CommandIgnoreFics
	CommandSetWordcountLimit
	CommandFilterLikedAuthors
	CommandFilterFresh
	CommandFilterComplete
	CommandFilterOutDead
	CommandResetFilters
	CommandForceListParams
	CommandCreateSimilarFicsList
	CommandChangeServerPrefix
	CommandInsufficientPermissions
	CommandPurge
)

var commandNames = map[CommandType]string{
	CommandNull:                    "null",
	CommandTimeoutActive:           "timeout_active",
	CommandNoUserFFN:               "no_user_ffn",
	CommandFillRecommendations:     "fill_recommendations",
	CommandDisplayPage:             "display_page",
	CommandDisplayRng:              "display_rng",
	CommandDisplayHelp:             "display_help",
	CommandSetFandoms:              "set_fandoms",
	CommandIgnoreFandoms:           "ignore_fandoms",
	CommandIgnoreFics:              "ignore_fics",
	CommandSetWordcountLimit:       "set_wordcount_limit",
	CommandFilterLikedAuthors:      "filter_liked_authors",
	CommandFilterFresh:             "filter_fresh",
	CommandFilterComplete:          "filter_complete",
	CommandFilterOutDead:           "filter_out_dead",
	CommandResetFilters:            "reset_filters",
	CommandForceListParams:         "force_list_params",
	CommandCreateSimilarFicsList:   "create_similar_fics_list",
	CommandChangeServerPrefix:      "change_server_prefix",
	CommandInsufficientPermissions: "insufficient_permissions",
	CommandPurge:                   "purge",
}

// String возвращает имя команды для логов и метрик.
func (t CommandType) String() string {
	if name, ok := commandNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsPageLike сообщает, что результат команды можно листать реакциями.
func (t CommandType) IsPageLike() bool {
	return t == CommandDisplayPage || t == CommandDisplayRng || t == CommandDisplayHelp
}

// CommandParams — типизированные параметры конкретного вида команды.
type CommandParams interface {
	commandParams()
}

// NullParams описывает отказ с причиной, показываемой пользователю.
type NullParams struct {
	Reason string
}

// TimeoutParams сообщает об активном кулдауне.
type TimeoutParams struct {
	Reason           string
	RemainingSeconds int
}

// FillParams запрашивает построение рекомендаций по профилю.
type FillParams struct {
	FFNID     string
	URL       string
	Refresh   bool
	FullParse bool
}

// PageParams указывает страницу выдачи.
type PageParams struct {
	Page            int
	RefreshPrevious bool
}

// RngParams задаёт качество случайной выборки: best, good или all.
type RngParams struct {
	Quality string
}

// HelpParams указывает страницу справки.
type HelpParams struct {
	Page int
}

// FandomParams используется для фильтра и игнора фандомов.
type FandomParams struct {
	Fandom string
	// Crossovers означает «разрешить кроссоверы» для фильтра и «игнорировать кроссоверы» для игнора.
	Crossovers bool
	Reset      bool
}

// IgnoreFicsParams содержит позиции на странице либо флаг «все».
type IgnoreFicsParams struct {
	Positions  []int
	Everything bool
}

// WordcountParams задаёт границы объёма.
type WordcountParams struct {
	Min int
	Max int
}

// FreshParams включает сортировку по свежести.
type FreshParams struct {
	Strict bool
}

// DeadParams задаёт порог в днях для скрытия заброшенных фиков.
type DeadParams struct {
	Days int
}

// ListParamsOverride фиксирует параметры построения списка. Нули возвращают автоподбор.
type ListParamsOverride struct {
	MinimumMatch         int
	MaxUnmatchedPerMatch int
}

// SimilarParams указывает фик, для которого ищутся похожие.
type SimilarParams struct {
	FicID int
}

// PrefixParams задаёт новый префикс сервера.
type PrefixParams struct {
	Prefix string
}

// NoParams используется командами без аргументов.
type NoParams struct{}

func (NullParams) commandParams()         {}
func (TimeoutParams) commandParams()      {}
func (FillParams) commandParams()         {}
func (PageParams) commandParams()         {}
func (RngParams) commandParams()          {}
func (HelpParams) commandParams()         {}
func (FandomParams) commandParams()       {}
func (IgnoreFicsParams) commandParams()   {}
func (WordcountParams) commandParams()    {}
func (FreshParams) commandParams()        {}
func (DeadParams) commandParams()         {}
func (ListParamsOverride) commandParams() {}
func (SimilarParams) commandParams()      {}
func (PrefixParams) commandParams()       {}
func (NoParams) commandParams()           {}

// Command — одна единица работы для диспетчера действий.
type Command struct {
	Type   CommandType
	Params CommandParams
	User   *User
	Server *Server
	// Origin — сообщение пользователя, на которое отвечает бот.
	Origin MessageRef
	// Target — сообщение бота, которое нужно отредактировать вместо отправки нового.
	Target           MessageRef
	PreExecutionText string
}

// NewCommand создаёт команду с параметрами.
func NewCommand(t CommandType, params CommandParams) Command {
	if params == nil {
		params = NoParams{}
	}
	return Command{Type: t, Params: params}
}

// CommandChain — упорядоченная очередь команд. Порядок вставки совпадает с порядком исполнения.
type CommandChain struct {
	Commands            []Command
	StopExecution       bool
	HasParseCommand     bool
	HasFullParseCommand bool
}

// Push добавляет команду в конец цепочки.
func (c *CommandChain) Push(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

// PushFront добавляет команду в начало цепочки.
func (c *CommandChain) PushFront(cmd Command) {
	c.Commands = append([]Command{cmd}, c.Commands...)
}

// Pop извлекает первую команду.
func (c *CommandChain) Pop() (Command, bool) {
	if len(c.Commands) == 0 {
		return Command{}, false
	}
	cmd := c.Commands[0]
	c.Commands = c.Commands[1:]
	return cmd, true
}

// Append дописывает команды другой цепочки и объединяет признаки.
func (c *CommandChain) Append(other CommandChain) {
	c.Commands = append(c.Commands, other.Commands...)
	c.StopExecution = c.StopExecution || other.StopExecution
	c.HasParseCommand = c.HasParseCommand || other.HasParseCommand
	c.HasFullParseCommand = c.HasFullParseCommand || other.HasFullParseCommand
}

// AddUser привязывает пользователя ко всем командам цепочки.
func (c *CommandChain) AddUser(u *User) {
	for i := range c.Commands {
		c.Commands[i].User = u
	}
}

// Len возвращает количество команд.
func (c CommandChain) Len() int {
	return len(c.Commands)
}

// Types возвращает виды команд по порядку.
func (c CommandChain) Types() []CommandType {
	types := make([]CommandType, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		types = append(types, cmd.Type)
	}
	return types
}
