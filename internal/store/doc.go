// package store implements the serialized credential store shared by every
// feature of the bot.
//
// All reads and writes go through [Store.WithConn], which holds a
// process-wide mutex for the duration of one transaction: exactly one scope
// executes at a time, so no caller ever observes a partially-committed
// state. Network I/O must never happen inside a scope.
package store
