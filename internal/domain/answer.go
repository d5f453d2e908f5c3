package domain

// AnswerKind tells how a document answer attempt ended.
type AnswerKind int

const (
	// Answered carries generated text.
	Answered AnswerKind = iota
	// Unavailable means the index holds no documents.
	Unavailable
	// Failed means retrieval or generation returned an error.
	Failed
)

func (k AnswerKind) String() string {
	switch k {
	case Answered:
		return "answered"
	case Unavailable:
		return "unavailable"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NotInitializedMessage is returned as the text of an Unavailable answer.
const NotInitializedMessage = "RAG system not initialized properly. Please check if documents are loaded."

// Answer is the result of answering a query from the document index.
type Answer struct {
	Kind AnswerKind
	Text string
	Err  error
}

// AnsweredWith builds an Answered result.
func AnsweredWith(text string) Answer { return Answer{Kind: Answered, Text: text} }

// UnavailableAnswer builds an Unavailable result carrying the sentinel text.
func UnavailableAnswer() Answer { return Answer{Kind: Unavailable, Text: NotInitializedMessage} }

// FailedWith builds a Failed result.
func FailedWith(err error) Answer { return Answer{Kind: Failed, Err: err} }
