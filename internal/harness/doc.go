// Package harness runs YAML scenarios against a real script environment.
//
// A scenario boots a runtime over a bootstrap script, dispatches a flow of
// SDK calls through the bridge, and checks each outcome, the resulting
// trace and the call journal.
//
// # Scenario Format
//
//	name: balance_then_transfer
//	description: "Reads a balance, then a transfer is rejected"
//	script: ../sdk/bootstrap.js
//	setup:
//	  - call: bladeSdk.init
//	    args: [key, testnet, dapp, fp]
//	flow:
//	  - call: bladeSdk.getBalance
//	    args: ["0.0.1"]
//	    expect:
//	      outcome: ok
//	      data: { hbars: 12.5 }
//	  - call: bladeSdk.contractCallFunction
//	    args:
//	      - "0.0.5"
//	      - set_message
//	      - params: [{type: string, value: hi}]
//	    expect:
//	      outcome: REMOTE_ERROR
//	      error_name: GoError
//	  - reset: true
//	assertions:
//	  - type: trace_count
//	    function: bladeSdk.getBalance
//	    count: 1
//	  - type: journal_status
//	    status: failed
//	    count: 1
//
// Arguments are rendered as script literals. A {params: [...]} argument is
// a typed parameter list (see params.FromTyped) and is sent as its
// WireForm.
//
// # Assertion Types
//
//   - trace_contains: a call to function was made with args as a prefix
//   - trace_order: functions were called in this order
//   - trace_count: function was called exactly count times
//   - journal_status: count journal rows have status (optionally for one function)
//
// # Deterministic Testing
//
// Correlation ids are sequential, the journal session is fixed and the
// journal clock steps by a constant, so traces are identical across runs
// and can be compared against golden files.
package harness
