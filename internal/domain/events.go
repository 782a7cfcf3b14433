package domain

// EventKind identifies one category of event emitted by the session client.
// The set is closed: the daemon only produces these kinds, and webhook wiring
// iterates AllEventKinds so every kind is forwarded.
type EventKind string

const (
	EventMessage                EventKind = "message"
	EventSyncMessage            EventKind = "syncMessage"
	EventSyncDisplayName        EventKind = "syncDisplayName"
	EventSyncAvatar             EventKind = "syncAvatar"
	EventMessageDeleted         EventKind = "messageDeleted"
	EventMessageRead            EventKind = "messageRead"
	EventMessageTypingIndicator EventKind = "messageTypingIndicator"
	EventScreenshotTaken        EventKind = "screenshotTaken"
	EventMediaSaved             EventKind = "mediaSaved"
	EventMessageRequestApproved EventKind = "messageRequestApproved"
	EventCall                   EventKind = "call"
	EventReactionAdded          EventKind = "reactionAdded"
	EventReactionRemoved        EventKind = "reactionRemoved"
)

// AllEventKinds lists every event kind the client can emit.
var AllEventKinds = []EventKind{
	EventMessage,
	EventSyncMessage,
	EventSyncDisplayName,
	EventSyncAvatar,
	EventMessageDeleted,
	EventMessageRead,
	EventMessageTypingIndicator,
	EventScreenshotTaken,
	EventMediaSaved,
	EventMessageRequestApproved,
	EventCall,
	EventReactionAdded,
	EventReactionRemoved,
}
