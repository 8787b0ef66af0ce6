// Package env provides the environment shared by L1 controllers and connectors.
package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID scopes the machine ID so it's not exposed as is.
const AppID = "robofw"

// MachineID retrieves the unique ID identifying the machine. It returns
// empty string if the ID can't be determined.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.Warningf("machine id: %v", err)
		return ""
	}
	return id
}
