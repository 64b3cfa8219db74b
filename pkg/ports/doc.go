/*
Package ports defines the driven ports (interfaces) of the conversational pipeline.

These interfaces decouple the runtime from the collaborators it drives: storage
backends, flow sources, action executors, content renderers and channel senders.

# Key Interfaces

  - StateStore: persists dialog session State per conversation key.
  - DistributedLocker: serializes access to one conversation across replicas.
  - FlowLoader: returns the dialog flows of a bot.
  - ActionRegistry / ActionServerResolver: run local and remote actions.
  - ContentRenderer / Replier / Sender: turn content into outgoing events and deliver them.
*/
package ports
