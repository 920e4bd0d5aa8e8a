// pgsh is a minimal interactive SQL shell built on the pglet driver.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pglet"
	"pglet/sqlparam"
	"pglet/version"
)

var (
	logLevel   string
	autocommit bool
)

var rootCmd = &cobra.Command{
	Use:   "pgsh",
	Short: "Interactive PostgreSQL shell",
	RunE:  runShell,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.String("host", "localhost", "server host")
	flags.Int("port", 5432, "server port")
	flags.String("user", "", "user name")
	flags.String("password", "", "password")
	flags.String("database", "", "database name (defaults to user)")
	flags.String("unix-sock", "", "unix socket path (overrides host/port)")
	flags.Bool("ssl", false, "require TLS")
	flags.Duration("timeout", 60*time.Second, "socket timeout")
	flags.String("paramstyle", "format", "placeholder style: qmark, numeric, named, format, pyformat")
	flags.StringVar(&logLevel, "log-level", "warning", "log level")
	flags.BoolVar(&autocommit, "autocommit", true, "run each statement in its own transaction")

	viper.SetEnvPrefix("pgsh")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlags(flags)

	rootCmd.AddCommand(versionCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(logLevel); err == nil {
		log.SetLevel(lvl)
	}

	conn, err := pglet.Connect(&pglet.Options{
		Host:          viper.GetString("host"),
		Port:          viper.GetInt("port"),
		User:          viper.GetString("user"),
		Password:      viper.GetString("password"),
		Database:      viper.GetString("database"),
		UnixSock:      viper.GetString("unix-sock"),
		SSL:           viper.GetBool("ssl"),
		SocketTimeout: viper.GetDuration("timeout"),
		ParamStyle:    sqlparam.Style(viper.GetString("paramstyle")),
		Autocommit:    autocommit,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("connected to %s (%s)\n", viper.GetString("host"), conn.Parameter("server_version"))
	fmt.Println(`type SQL statements; \q quits`)

	cur := conn.Cursor()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("pgsh> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == `\q` || line == "quit" || line == "exit" {
			break
		}
		if err := cur.Execute(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printResult(cur)
	}
	return scanner.Err()
}

func printResult(cur *pglet.Cursor) {
	desc := cur.Description()
	if desc == nil {
		if n := cur.RowCount(); n >= 0 {
			fmt.Printf("ok (%d rows affected)\n", n)
		} else {
			fmt.Println("ok")
		}
		return
	}

	names := make([]string, len(desc))
	for i, f := range desc {
		names[i] = f.Name
	}
	fmt.Println(strings.Join(names, "\t"))

	count := 0
	for row := range cur.Rows() {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Println(strings.Join(cells, "\t"))
		count++
	}
	fmt.Printf("(%d rows)\n", count)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
