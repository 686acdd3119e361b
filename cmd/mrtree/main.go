// Copyright 2024 The binomial-coding Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Command mrtree encodes and decodes progressive multiresolution particle
// archives.
//
// Example usage:
//	$ mrtree encode --in cloud.xyz --name archive --ndims 3 --nlevels 4 --block 2 --accuracy 0.01
//	$ mrtree decode --in archive --out cloud-decoded.xyz --max-num-blocks 200 --by-error
//	$ mrtree error --in cloud.xyz --out cloud-decoded.xyz --dims 256,256,256
//
// Every flag may also be set through an MRTREE_<FLAG> environment
// variable (dashes become underscores); an explicit flag always wins.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var log = logrus.StandardLogger()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "mrtree",
		Short:         "Progressive multiresolution particle codec",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "log at debug level (one line per level file written)")
	root.AddCommand(newEncodeCmd(), newDecodeCmd(), newErrorCmd())
	return root
}

// bindFlags makes every flag registered on cmd also settable through an
// MRTREE_<FLAG NAME> environment variable, flags taking precedence.
func bindFlags(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("mrtree")
	v.AutomaticEnv()
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVar := flagEnvName(f.Name)
		v.BindEnv(f.Name, envVar)
		if !f.Changed && v.IsSet(f.Name) {
			cmd.Flags().Set(f.Name, v.GetString(f.Name))
		}
	})
	return v
}

func flagEnvName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '-' {
			c = '_'
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return fmt.Sprintf("MRTREE_%s", string(out))
}
