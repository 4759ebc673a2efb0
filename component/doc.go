// Package component defines the core interfaces for lifecycle-managed
// infrastructure services.
//
// Components represent services that require startup, shutdown and
// health monitoring. They are registered with the bootstrap package for
// automatic lifecycle management: started in registration order,
// stopped in reverse.
//
// # Interfaces
//
//   - Component: lifecycle interface (Name/Start/Stop/Health)
//   - Describable: startup summary descriptions
//   - RouteProvider: HTTP route reporting for the startup summary
package component
