package store

// Conversation is the persisted history of one surface instance.
type Conversation struct {
	ID        int32
	UID       string
	Surface   string
	ThreadID  string
	CreatedTs int64
	UpdatedTs int64
}

type FindConversation struct {
	ID      *int32
	UID     *string
	Surface *string
	Limit   *int
}

type UpdateConversation struct {
	ID        int32
	ThreadID  *string
	UpdatedTs *int64
}

type DeleteConversation struct {
	ID int32
}

type TurnRole string

const (
	TurnRoleUser      TurnRole = "USER"
	TurnRoleAssistant TurnRole = "ASSISTANT"
)

// ConversationTurn is one persisted log entry.
type ConversationTurn struct {
	ID             int32
	UID            string
	ConversationID int32
	Role           TurnRole
	Content        string
	Failed         bool
	CreatedTs      int64
}

type FindConversationTurn struct {
	ConversationID *int32
	UID            *string
}
