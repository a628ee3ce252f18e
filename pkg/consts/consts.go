package consts

const (
	AppName = "chatline"
)

// gin context keys
const (
	UserHandle = "USER_HANDLE"
	UserToken  = "USER_TOKEN"
	ClientUUID = "CLIENT_UUID"
)

// roots of the shared realtime store schema
const (
	UsersRoot      = "users"
	ChatsRoot      = "chats"
	GroupChatsRoot = "groupChats"
	BlockedRoot    = "blockedUsers"
	ClearedRoot    = "clearedChats"
	CallsRoot      = "calls"
	UsernamesRoot  = "usernames"

	GroupMessagesNode = "messages"
)

// message payload types
const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeVideo = "video"
	MsgTypeAudio = "audio"
	MsgTypeFile  = "file"
)

// call lifecycle
const (
	CallStatusRinging  = "ringing"
	CallStatusAccepted = "accepted"
	CallStatusRejected = "rejected"
	CallStatusEnded    = "ended"

	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// contact list filters
const (
	FilterAll     = "all"
	FilterUnread  = "unread"
	FilterGroups  = "groups"
	FilterBlocked = "blocked"
)

// conversation kinds
const (
	ChatKindIndividual = "individual"
	ChatKindGroup      = "group"
)

// UI gateway event kinds
const (
	EventChat     = "chat"
	EventUnread   = "unread"
	EventPresence = "presence"
	EventContacts = "contacts"
	EventCall     = "call"
	EventError    = "error"
)

// UI gateway inbound command kinds
const (
	CommandActivate = "activate"
	CommandMarkRead = "mark_read"
	CommandSend     = "send"
	CommandStatus   = "status"
)

// media resource classes accepted by the upload host
const (
	MediaResourceImage = "image"
	MediaResourceVideo = "video"
	MediaResourceRaw   = "raw"
)
