// Package heartbeat records coarse usage heartbeats and turns them into a
// compact request header.
//
// # Overview
//
// A Controller records at most one heartbeat per tracked time period. Dates
// are normalized to the UTC calendar day before any comparison. Heartbeats
// live in a Bundle: a fixed-capacity ring of the most recent entries plus a
// cache of the last date logged for each period. The bundle is persisted
// through a storage.Storage and flushed on demand into a Payload whose
// HeaderValue is attached to outgoing requests.
//
// # De-duplication
//
// Eligibility is decided per period, not per agent. Once any agent has
// logged for today, further Log calls from the same or other agents record
// nothing until the next day:
//
//	ctrl.Log("core/1.0")   // recorded
//	ctrl.Log("vision/2.0") // skipped, daily period already satisfied
//
// Flushing keeps the cache, so a flushed day cannot be logged again.
//
// # Concurrency
//
// Each Storage owns a single worker goroutine with an unbounded FIFO queue.
// Every read-modify-write for one identifier runs on that worker in
// submission order. Log and FlushAsync never block; Flush and
// FlushHeartbeatFromToday wait only for their turn in the queue.
//
// # Usage
//
//	ctrl, err := heartbeat.NewController(heartbeat.ControllerConfig{ID: "my-app"})
//	if err != nil {
//	    return err
//	}
//	defer ctrl.Close()
//
//	ctrl.Log("my-sdk/1.2.0")
//	req.Header.Set("X-Client-Heartbeat", ctrl.Flush().HeaderValue())
package heartbeat
