// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Ormctl is a command-line client for a hypermedia REST API, such as
// the one ormd serves.  Records are named by the collection they
// belong to, as in
//
//     ormctl list nodes --filter group__name=red --order-by age
//     ormctl update nodes --filter age__lt=10 age=10
//     ormctl invoke nodes 3 reboot
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/diffeo/go-orm/orm"
	"github.com/diffeo/go-orm/restclient"
	"github.com/diffeo/go-orm/restdata"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
)

// tool holds the state shared by every command.
type tool struct {
	API *restclient.API
	Out io.Writer
}

var ctl = tool{Out: os.Stdout}

// parseValue interprets a command-line value as a YAML scalar, so
// that "3" is a number and "true" a boolean.
func parseValue(s string) interface{} {
	var value interface{}
	if err := yaml.Unmarshal([]byte(s), &value); err != nil || value == nil {
		return s
	}
	switch value.(type) {
	case string, int, int64, float64, bool:
		return value
	}
	return s
}

// parseAssignments turns "name=value" arguments into fields.
func parseAssignments(args []string) (orm.Fields, error) {
	fields := orm.Fields{}
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("expected name=value, got %q", arg)
		}
		fields[parts[0]] = parseValue(parts[1])
	}
	return fields, nil
}

func (t *tool) print(value interface{}) error {
	if r, ok := value.(*orm.Resource); ok {
		_, err := fmt.Fprintln(t.Out, r.String())
		return err
	}
	body, err := restdata.EncodeBody(orm.SerializeValue(value))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(t.Out, string(body))
	return err
}

// collection retrieves a kind's collection and applies the --filter
// and --exclude options.
func (t *tool) collection(ctx context.Context, c *cli.Context, kind string) (*orm.Collection, error) {
	m, err := t.API.Manager(ctx, kind)
	if err != nil {
		return nil, err
	}
	all, err := m.Retrieve(ctx, nil)
	if err != nil {
		return nil, err
	}
	include, err := parseAssignments(c.StringSlice("filter"))
	if err != nil {
		return nil, err
	}
	if len(include) > 0 {
		if all, err = all.Filter(ctx, orm.Criteria(include)); err != nil {
			return nil, err
		}
	}
	exclude, err := parseAssignments(c.StringSlice("exclude"))
	if err != nil {
		return nil, err
	}
	if len(exclude) > 0 {
		if all, err = all.Exclude(ctx, orm.Criteria(exclude)); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// resource retrieves a single record by kind and identifier.
func (t *tool) resource(ctx context.Context, kind, id string) (*orm.Resource, error) {
	m, err := t.API.Manager(ctx, kind)
	if err != nil {
		return nil, err
	}
	return m.RetrieveID(ctx, id)
}

func reportFailures(failed []orm.Failure) error {
	if len(failed) == 0 {
		return nil
	}
	return cli.NewExitError(fmt.Sprintf("%d requests failed", len(failed)), 1)
}

var selectionFlags = []cli.Flag{
	cli.StringSliceFlag{
		Name:  "filter",
		Usage: "only records matching path=value",
	},
	cli.StringSliceFlag{
		Name:  "exclude",
		Usage: "skip records matching path=value",
	},
}

var listCmd = cli.Command{
	Name:      "list",
	Usage:     "list the records of a kind",
	ArgsUsage: "KIND",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "order-by",
			Usage: "sort by this field path",
		},
		cli.BoolFlag{
			Name:  "reverse",
			Usage: "sort in descending order",
		},
		cli.StringFlag{
			Name:  "values",
			Usage: "print only the values of this field path",
		},
		cli.StringSliceFlag{
			Name:  "related",
			Usage: "fetch related records along this path first",
		},
	}, selectionFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("list needs exactly one kind")
		}
		ctx := context.Background()
		all, err := ctl.collection(ctx, c, c.Args().First())
		if err != nil {
			return err
		}
		if related := c.StringSlice("related"); len(related) > 0 {
			if err := all.RetrieveRelated(ctx, related, false); err != nil {
				return err
			}
		}
		if path := c.String("order-by"); path != "" {
			if all, err = all.OrderBy(ctx, path, c.Bool("reverse")); err != nil {
				return err
			}
		}
		if path := c.String("values"); path != "" {
			values, err := all.ValuesList(ctx, path)
			if err != nil {
				return err
			}
			for _, value := range values.Items() {
				if err := ctl.print(value); err != nil {
					return err
				}
			}
			return nil
		}
		for _, r := range all.Items() {
			if err := ctl.print(r); err != nil {
				return err
			}
		}
		return nil
	},
}

var groupCmd = cli.Command{
	Name:      "group",
	Usage:     "count the records of a kind by the value of a field",
	ArgsUsage: "KIND PATH",
	Flags:     selectionFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("group needs a kind and a field path")
		}
		ctx := context.Background()
		all, err := ctl.collection(ctx, c, c.Args().Get(0))
		if err != nil {
			return err
		}
		groups, err := all.GroupBy(ctx, c.Args().Get(1))
		if err != nil {
			return err
		}
		for _, g := range groups {
			err := ctl.print(map[string]interface{}{
				"key":   orm.SerializeValue(g.Key),
				"count": g.Members.Len(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	},
}

var getCmd = cli.Command{
	Name:      "get",
	Usage:     "show one record",
	ArgsUsage: "KIND ID",
	Flags: []cli.Flag{
		cli.StringSliceFlag{
			Name:  "related",
			Usage: "fetch related records along this path",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("get needs a kind and an id")
		}
		ctx := context.Background()
		r, err := ctl.resource(ctx, c.Args().Get(0), c.Args().Get(1))
		if err != nil {
			return err
		}
		if related := c.StringSlice("related"); len(related) > 0 {
			if err := orm.RetrieveRelated(ctx, []*orm.Resource{r}, related, false); err != nil {
				return err
			}
		}
		return ctl.print(r)
	},
}

var createCmd = cli.Command{
	Name:      "create",
	Usage:     "create a record",
	ArgsUsage: "KIND NAME=VALUE...",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return errors.New("create needs a kind")
		}
		ctx := context.Background()
		fields, err := parseAssignments(c.Args().Tail())
		if err != nil {
			return err
		}
		m, err := ctl.API.Manager(ctx, c.Args().First())
		if err != nil {
			return err
		}
		r, err := m.Create(ctx, fields)
		if err != nil {
			return err
		}
		return ctl.print(r)
	},
}

var updateCmd = cli.Command{
	Name:      "update",
	Usage:     "change fields on every selected record",
	ArgsUsage: "KIND NAME=VALUE...",
	Flags:     selectionFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return errors.New("update needs a kind and some fields")
		}
		ctx := context.Background()
		fields, err := parseAssignments(c.Args().Tail())
		if err != nil {
			return err
		}
		all, err := ctl.collection(ctx, c, c.Args().First())
		if err != nil {
			return err
		}
		succeeded, failed := all.Update(ctx, fields)
		for _, r := range succeeded {
			if err := ctl.print(r); err != nil {
				return err
			}
		}
		return reportFailures(failed)
	},
}

var deleteCmd = cli.Command{
	Name:      "delete",
	Usage:     "delete one record, or every selected record",
	ArgsUsage: "KIND [ID]",
	Flags:     selectionFlags,
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		switch c.NArg() {
		case 2:
			r, err := ctl.resource(ctx, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			return r.Delete(ctx)
		case 1:
			if len(c.StringSlice("filter")) == 0 {
				return errors.New("refusing to delete every record without --filter")
			}
			all, err := ctl.collection(ctx, c, c.Args().First())
			if err != nil {
				return err
			}
			_, failed := all.Destroy(ctx)
			return reportFailures(failed)
		}
		return errors.New("delete needs a kind and an optional id")
	},
}

var invokeCmd = cli.Command{
	Name:      "invoke",
	Usage:     "run an action on a record",
	ArgsUsage: "KIND ID ACTION [NAME=VALUE...]",
	Action: func(c *cli.Context) error {
		if c.NArg() < 3 {
			return errors.New("invoke needs a kind, an id, and an action")
		}
		ctx := context.Background()
		args := c.Args()
		fields, err := parseAssignments(args[3:])
		if err != nil {
			return err
		}
		r, err := ctl.resource(ctx, args.Get(0), args.Get(1))
		if err != nil {
			return err
		}
		m, ok := r.Manager(args.Get(2))
		if !ok {
			return orm.ErrAttributeNotFound{Name: args.Get(2), URL: r.URL()}
		}
		result, err := m.Call(ctx, "invoke", fields)
		if err != nil {
			return err
		}
		return ctl.print(result)
	},
}

var downloadCmd = cli.Command{
	Name:      "download",
	Usage:     "fetch a file attached to a record and check its digest",
	ArgsUsage: "KIND ID FILE DEST",
	Action: func(c *cli.Context) error {
		if c.NArg() != 4 {
			return errors.New("download needs a kind, an id, a file name, and a destination")
		}
		ctx := context.Background()
		args := c.Args()
		r, err := ctl.resource(ctx, args.Get(0), args.Get(1))
		if err != nil {
			return err
		}
		handler, ok := r.File(args.Get(2))
		if !ok {
			return orm.ErrAttributeNotFound{Name: args.Get(2), URL: r.URL()}
		}
		if err := handler.Retrieve(ctx, args.Get(3)); err != nil {
			return err
		}
		if err := handler.ValidateSHA256(); err != nil {
			return err
		}
		_, err = fmt.Fprintln(ctl.Out, handler.Path)
		return err
	},
}

// config builds the client configuration from a file, if one is
// named, with explicit flags on top.
func config(c *cli.Context) (restclient.Config, error) {
	cfg := restclient.Config{URL: c.GlobalString("url")}
	if file := c.GlobalString("config"); file != "" {
		var err error
		cfg, err = restclient.LoadConfig(file)
		if err != nil {
			return cfg, err
		}
		if c.GlobalIsSet("url") {
			cfg.URL = c.GlobalString("url")
		}
	}
	if c.GlobalIsSet("username") {
		cfg.Username = c.GlobalString("username")
	}
	if c.GlobalIsSet("password") {
		cfg.Password = c.GlobalString("password")
	}
	if c.GlobalIsSet("cache") {
		cfg.Cache = c.GlobalBool("cache")
	}
	if c.GlobalIsSet("concurrency") {
		cfg.Concurrency = c.GlobalInt("concurrency")
	}
	if c.GlobalIsSet("retries") {
		cfg.Retries = c.GlobalInt("retries")
	}
	return cfg, nil
}

func main() {
	app := cli.NewApp()
	app.Usage = "inspect and change records through a REST API"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "url",
			Value:  "http://localhost:5981/",
			Usage:  "base URL of the API",
			EnvVar: "ORM_URL",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML client configuration file",
		},
		cli.StringFlag{
			Name:   "username",
			Usage:  "log in as this user",
			EnvVar: "ORM_USERNAME",
		},
		cli.StringFlag{
			Name:   "password",
			Usage:  "password for --username",
			EnvVar: "ORM_PASSWORD",
		},
		cli.BoolFlag{
			Name:  "cache",
			Usage: "cache responses",
		},
		cli.IntFlag{
			Name:  "concurrency",
			Value: 8,
			Usage: "requests in flight for bulk operations",
		},
		cli.IntFlag{
			Name:  "retries",
			Value: 2,
			Usage: "retry transport errors this many times",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "log every request",
		},
	}
	app.Commands = []cli.Command{
		listCmd,
		groupCmd,
		getCmd,
		createCmd,
		updateCmd,
		deleteCmd,
		invokeCmd,
		downloadCmd,
	}
	app.Before = func(c *cli.Context) error {
		logger := logrus.New()
		logger.Out = os.Stderr
		logger.Level = logrus.WarnLevel
		if c.GlobalBool("debug") {
			logger.Level = logrus.DebugLevel
		}
		cfg, err := config(c)
		if err != nil {
			return err
		}
		ctl.API, err = restclient.New(cfg, restclient.WithLogger(logger))
		return err
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("ormctl failed")
	}
}
