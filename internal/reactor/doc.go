// Package reactor turns library-directory changes and host lifecycle events
// into regeneration and rebuild requests.
//
// Two paths lead to a rebuild:
//
//   - File events from the library directory. Archive changes re-index the
//     classpath; source changes are mirrored into the staging directory and
//     trigger a full rebuild. Deleting a source that was never staged, or
//     modifying one whose content is already staged, does nothing.
//   - Host events. A device status change that enters or leaves the
//     initialized group regenerates the action interfaces and rebuilds only
//     if they changed. Device and data point additions or removals
//     regenerate the matching constant unit and always rebuild.
//
// Watcher feeds the first path from fsnotify. The reactor itself is an
// events.Subscriber for the second.
package reactor
