// Package msgs provides L1 protocol support: the Typed envelope, the
// message type registry and the generic command replies.
package msgs

// L1 protocol is communicated between the robot (L1 controller) and the
// remote controller (L2), and carries firmware update commands and status
// events among others.
//
// Producer: L1 controller
// Consumer: L2 remote controller
