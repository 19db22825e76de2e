package gemini

var Classify = classify

func (e *Embedder) TaskType() string { return e.taskType }
