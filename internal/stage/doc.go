// Package stage defines the contract shared by the per-item pipeline stages
// and the Item and Outcome values exchanged with the stage executor.
package stage
