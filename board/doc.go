// Package board defines the records shown on the signage display.
//
// A Board is produced once per poll: the next arrival for every monitored
// combo of every feed, the banner alerts, the metro line statuses and the
// weather flag. All types carry JSON tags matching the display front end.
package board
