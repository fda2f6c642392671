package service

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/complypilot/complypilot/app/core"
	"github.com/complypilot/complypilot/app/logic/v1/process"
)

type Options struct {
	ConfigPath string
	Install    bool
}

func (o *Options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", "", "init api by given config")
	flagSet.BoolVar(&o.Install, "install", false, "run database migrations before serving")
}

func NewCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "service",
		Short: "knowledge assistant service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func Run(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	if opts.Install {
		if err := app.Install(); err != nil {
			return err
		}
	}

	worker := process.NewProcess(app)
	worker.Start()
	defer worker.Stop()

	serve(app)
	return nil
}

// NewProcessCommand 只跑向量化 worker，不开 http
func NewProcessCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "embedding worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunProcess(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func RunProcess(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	worker := process.NewProcess(app)
	worker.Start()
	fmt.Println("Process starting...")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	worker.Stop()
	return nil
}

// NewInstallCommand 执行建库迁移后退出
func NewInstallCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
			return app.Install()
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}
