/*
Package session maps session IDs to director engines.

One Engine directs one conversation. The Manager serialises calls per session,
optionally coordinates replicas through a distributed locker, and snapshots
the conversation state to a StateStore after every evaluation so that a
session survives restarts and engine eviction.
*/
package session
