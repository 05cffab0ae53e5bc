// Package pipeline sequences the external SUMO tools that turn a bounding
// box into a runnable scenario: map download, network conversion, polygon
// conversion, trip generation, routing, and the Veins/OMNeT++ config files.
//
// Steps run strictly in order on the caller's goroutine. A mandatory step
// failure aborts the remaining pipeline; the polygon step is optional and
// its failure policy is configurable. Progress is streamed to sinks as
// ordered events so a UI can render the run live.
package pipeline
