// Package workflow drives pipeline jobs through their stages: script
// generation, narration synthesis, the concurrent caption/footage phase,
// and the final render. The manager polls the queue, executes the stage
// registered for each job's status, keeps heartbeats fresh while a stage
// runs, and publishes a receipt when a job completes.
package workflow
