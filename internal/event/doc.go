// Package event provides the synchronous publish/subscribe bus that
// connects pipeline steps, the run state machine, and consumers such as
// the persistence sink and CLI reporters. Every published event is also
// appended to a bounded in-memory history ring so a completed run can be
// audited or replayed after the fact.
//
// The bus is an explicit object: construct one with NewBus and pass it
// by reference to every component that needs it. There is no package
// level singleton, which keeps tests independent (each test gets a
// fresh bus) and makes event flow visible in constructor signatures.
package event
