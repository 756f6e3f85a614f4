// Package conversation maintains the bounded rolling conversation log.
// It stores user/assistant turns in chronological order, builds the prompt
// window sent to the language model, and compresses old turns into a single
// summary turn when the log grows past its capacity.
package conversation
