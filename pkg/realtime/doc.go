/*
Package realtime pushes notifications to connected websocket clients.

Clients connect to one of two namespaces. Guests (webchat visitors) join with a
visitorId and are placed in the room "visitor:<id>". Admins present a signed
token. Server payloads whose name starts with "guest." go to the guest
namespace, all others to the admin one. A payload carrying a socket id or a
room is delivered only there; the others are broadcast to the whole namespace.

Delivery is at-most-once: each connection has a bounded buffer and frames for
a slow client are dropped when it is full.

Several nodes share notifications and room membership through a Backplane.
*/
package realtime
