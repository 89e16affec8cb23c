package constant

// Websocket event types pushed to the rendering client.
const (
	WsEventEntryUpdated  = "entry_updated"
	WsEventEntryRemoved  = "entry_removed"
	WsEventNotice        = "notice"
	WsEventNotebookTitle = "notebook_title"
)

const (
	NoticeLevelError   = "error"
	NoticeLevelWarning = "warning"
)

const (
	NoticeEntryRolledBack = "Your query could not be completed. Please try again."
	NoticeEntryPartial    = "The response was interrupted. Partial results are shown."
	NoticeNotebookCreate  = "Could not create a notebook for your query. Please try again."
)

// HTTP messages for failed submissions. The underlying cause is only logged.
const (
	ErrMessageQueryBackend = "The query service is unavailable. Please try again."
	ErrMessageEntryStorage = "Your query result could not be saved. Please try again."
)

const TitleMaxRunes = 60

// TitlePromptTemplate asks for a short notebook title from the first user prompt.
const TitlePromptTemplate = `Write a short title (at most 6 words) for a data notebook that starts with the question below.
Reply with the title only, without quotes or punctuation at the end.

Question: %s`
