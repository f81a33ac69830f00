// Package controller provides an HTTP client for the flow controller service.
//
// The controller service owns the serial link to the mass-flow controller
// array and is the single source of truth for device state. This package
// implements the console side of that contract: fetching full state
// snapshots and issuing discrete per-channel commands (power, setpoint,
// valve mode, ramp, gas selection, tag, totalizer reset).
//
// # State Model
//
// Every successful call that mutates device state returns a complete
// Snapshot. The console is expected to adopt it wholesale, replacing its
// local copy rather than merging fields, so it never displays a state the
// controller has not actually reached. The one exception is SetTag, which
// returns no snapshot: the console applies the same truncate-and-pad
// normalization locally and a later poll converges on the controller's copy.
//
// # Usage Example
//
//	client := controller.NewClient("127.0.0.1", 9327)
//
//	snap, err := client.Connect("COM3")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	snap, err = client.SetConsigne(0, 12.5)
//	if err != nil {
//	    // state unchanged on the controller, keep the previous snapshot
//	}
//
// # Error Handling
//
// All errors are *controller.Error values carrying a Kind. Use the
// IsConnectionError, IsCommandRejected and IsFetchError helpers to branch
// on the category; Unwrap exposes the transport cause when there is one.
package controller
