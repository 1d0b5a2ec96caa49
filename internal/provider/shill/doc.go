// Package shill implements netstate.Provider against the ChromeOS
// connection manager (shill) on the D-Bus system bus.
//
// Lists come from Manager properties: Services are the visible networks,
// ServiceCompleteList the favorites and Devices the devices. New paths get
// a GetProperties call whose result is delivered as a full snapshot;
// PropertyChanged signals on the Manager, Service and Device interfaces
// are delivered as single-property updates.
//
// D-Bus calls never run on the caller's goroutine: every Provider method
// starts the call and returns, and results flow back through the Delegate.
package shill
