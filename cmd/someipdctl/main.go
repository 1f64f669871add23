// Command someipdctl is the CLI client for the someipd daemon's admin
// surface: inspecting required service instances and connected
// applications, and streaming service discovery events.
package main

import (
	"github.com/someipd/someipd/cmd/someipdctl/commands"
)

func main() {
	commands.Execute()
}
