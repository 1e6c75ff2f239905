package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	clicfg "github.com/yndnr/corslight-go/internal/cli/config"
)

// ProfileView is one row of `profile list`.
type ProfileView struct {
	Name      string `json:"name"`
	Current   bool   `json:"current"`
	Server    string `json:"server"`
	Target    string `json:"target"`
	Origin    string `json:"origin"`
	Network   string `json:"network,omitempty" table:"wide"`
	Namespace string `json:"namespace,omitempty" table:"wide"`
}

// ProfileCommand returns the profile subcommand group.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List profiles",
				Action: profileList,
			},
			{
				Name:      "save",
				Usage:     "Save the current connection flags as a profile",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "use",
						Usage: "Also make it the current profile",
					},
				},
				Action: profileSave,
			},
			{
				Name:      "use",
				Usage:     "Select the current profile",
				ArgsUsage: "NAME",
				Action:    profileUse,
			},
		},
	}
}

func profileList(c *cli.Context) error {
	cfg, err := clicfg.Load(c.String("config"))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]ProfileView, 0, len(names))
	for _, name := range names {
		p := cfg.Profiles[name]
		views = append(views, ProfileView{
			Name:      name,
			Current:   name == cfg.Current,
			Server:    p.Server,
			Target:    p.Target,
			Origin:    p.Origin,
			Network:   p.Network,
			Namespace: p.Namespace,
		})
	}
	return render(c, views)
}

func profileSave(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("profile save needs NAME")
	}
	name := c.Args().First()
	path := c.String("config")

	cfg, err := clicfg.Load(path)
	if err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	cfg.Profiles[name] = clicfg.Profile{
		Server:    flags.Server,
		Network:   flags.Network,
		Target:    flags.Target,
		Origin:    flags.Origin,
		Namespace: flags.Namespace,
		Timeout:   flags.Timeout.String(),
	}
	if c.Bool("use") || cfg.Current == "" {
		cfg.Current = name
	}
	if err := clicfg.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "profile %s saved\n", name)
	return nil
}

func profileUse(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("profile use needs NAME")
	}
	name := c.Args().First()
	path := c.String("config")

	cfg, err := clicfg.Load(path)
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	cfg.Current = name
	if err := clicfg.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "using profile %s\n", name)
	return nil
}
