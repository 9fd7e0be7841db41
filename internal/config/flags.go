// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps override flags to configuration keys.
var flagKeys = map[string]string{
	"device":    "serial.device",
	"baud_rate": "serial.baud_rate",
	"driver":    "serial.driver",
	"slave_id":  "bus.slave_id",
	"log_level": "log.level",
	"log_file":  "log.file",
}

// RegisterFlags defines the command line flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.StringP("device", "p", "", "Serial port device name.")
	fs.IntP("baud_rate", "s", 0, "Serial port speed.")
	fs.StringP("driver", "d", "", "Serial driver (grid-x, tarm, sim).")
	fs.Uint8P("slave_id", "a", 0, "Slave id of the controller.")
	fs.StringP("log_level", "v", "", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log_file", "L", "", "Log file name ('-' for logging to STDERR only).")
}

// bindFlags binds the flags given on the command line. Unset flags are
// left out so their zero defaults do not shadow the file.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}
