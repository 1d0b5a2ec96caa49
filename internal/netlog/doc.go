// Package netlog keeps the network event log: a bounded in-memory history of
// what the state engine observed and did (list updates, connection
// transitions, default network changes, user requests, provider errors).
//
// Entries are mirrored to the structured logger and fanned out to optional
// sinks for persistence: SQLiteSink stores them in the network_events table
// and CBORFileSink appends them to a compact CBOR stream that ReadCBORFile
// reads back.
//
//	log := netlog.New(1000)
//	log.SetLogger(logger.Component("netlog"))
//	log.AddSink(netlog.NewSQLiteSink(db))
//	log.Record(netlog.LevelEvent, "DefaultNetworkChanged", "/service/wifi1", "home (/service/wifi1)")
package netlog
