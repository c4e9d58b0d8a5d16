// Package chat implements the typed text flows: free-form questions to the
// assistant and emotion analysis of a short text.
package chat
