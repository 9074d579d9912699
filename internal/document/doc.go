// Package document loads and saves graphs as HCL files.
//
// A document declares nodes by label and connects their buses with edges:
//
//	node "a" {
//	  type     = "number"
//	  position = [0, 0]
//	  sources  = { number = 10 }
//	}
//
//	node "total" {
//	  type = "output"
//	}
//
//	edge {
//	  from = "a.number"
//	  to   = "total.value"
//	}
//
// Loading replays the document through the store's AddNode and AddEdge, so a
// document is subject to exactly the same validation as interactive edits.
// Labels are local to the document; the store assigns its own node ids and
// the returned Document maps between the two.
package document
