// Package route draws orthogonal connectors between laid-out process steps.
//
// Lanes are vertical columns, so most flow runs downwards. The router picks
// one of four shapes per edge:
//
//   - Straight: the target is the next node below the source in the same
//     lane. Bottom-center to top-center.
//   - Lane detour: same lane otherwise (skips, back edges). The connector
//     leaves sideways, runs up or down a corridor beside the lane's nodes and
//     re-enters the target from the same side.
//   - Cross lane: the connector leaves toward the target lane and travels
//     vertically on a lane boundary, where no node can sit. When the
//     horizontal legs would cut through a node in an intermediate lane, a
//     free horizontal channel is searched instead.
//   - Self loop: around the node's lower-left corner into its top.
//
// Both branches of a gateway (or of a task with Confirmer/Annuler
// successors) always leave from different sides so they diverge at the
// origin. Connectors sharing a corridor over overlapping spans get distinct
// slot offsets.
//
// This is a heuristic, not an obstacle-avoiding pathfinder: it guarantees
// every edge is drawn with at least two waypoints and that vertical runs and
// lane-crossing legs stay clear of node boxes for tables of normal size.
package route
