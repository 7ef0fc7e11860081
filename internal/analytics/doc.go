// Package analytics holds the pure arithmetic behind the school manager
// reports: status classification, progress and rates, the active-time
// estimate, the engagement score and the quiz and assignment rollups.
// Nothing here performs I/O; callers fetch typed rows and pass them in.
package analytics
