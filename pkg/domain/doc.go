// Package domain holds the airline customer-service model served by the
// reference delegate: threads, their items and agent events, the airline
// context and the agent catalogue.
package domain
