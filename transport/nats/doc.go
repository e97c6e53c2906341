// Package nats publishes finished games to a NATS subject so that other
// services (leaderboards, analytics) can react without polling.
package nats
