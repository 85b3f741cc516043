package domain

// Translation keys shown by the browser; the lookup tables live client-side.
const (
	MsgQuestionsLoadError     = "QUESTIONS_LOAD_ERROR"
	MsgQuizLoadError          = "QUIZ_LOAD_ERROR"
	MsgSubmitQuizError        = "SUBMIT_QUIZ_ERROR"
	MsgSubmitQuizConfirmation = "SUBMIT_QUIZ_CONFIRMATION"
	MsgTimeExpired            = "QUIZ_TIME_EXPIRED"
	MsgAnswerError            = "ANSWER_ERROR"
	MsgPageError              = "PAGE_ERROR"
	MsgInvalidMessage         = "INVALID_MESSAGE"

	TitleError   = "ERROR"
	TitleConfirm = "CONFIRM"
)
