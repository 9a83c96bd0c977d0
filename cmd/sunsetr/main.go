// Command sunsetr is a long-running user-level daemon that drives a
// Wayland session's display color temperature and gamma between day
// and night setpoints, on astronomical or manual schedules, with a
// control-and-event IPC socket (spec overview).
package main

import "os"

func main() {
	os.Exit(run())
}
