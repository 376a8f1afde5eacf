package basic

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	core "batchinsert/data/db"
	"batchinsert/data/db/dialect"
	"batchinsert/errors"
)

// DataSource 由配置推导 sql.Open 需要的驱动名与 DSN
//
// 配置了 DSN 时原样使用；否则 mysql 通过 mysql.Config 格式化，
// postgres 拼接 key=value 形式，sqlite 使用 Database 作为文件路径。
func DataSource(config core.DBConfig) (driver string, dsn string, err error) {
	name := dialect.ParseName(config.Driver)
	if config.Driver == "" {
		name = dialect.NameSQLite
	}

	switch name {
	case dialect.NameMySQL:
		driver = "mysql"
	case dialect.NamePostgres:
		driver = "postgres"
	case dialect.NameSQLite:
		driver = "sqlite"
	default:
		return "", "", errors.NewConfigurationError(fmt.Sprintf("unsupported database driver %q", config.Driver))
	}

	if config.DSN != "" {
		return driver, config.DSN, nil
	}

	switch name {
	case dialect.NameMySQL:
		dsn, err = mysqlDSN(config)
	case dialect.NamePostgres:
		dsn = postgresDSN(config)
	default:
		dsn = config.Database
		if dsn == "" {
			dsn = ":memory:"
		}
	}
	return driver, dsn, err
}

func mysqlDSN(config core.DBConfig) (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = config.Username
	cfg.Passwd = config.Password
	cfg.Net = "tcp"
	cfg.Addr = hostPort(config.Host, config.Port, 3306)
	cfg.DBName = config.Database
	cfg.ParseTime = config.ParseTime

	if config.Location != "" {
		loc, err := time.LoadLocation(config.Location)
		if err != nil {
			return "", errors.NewErrorWithCause(errors.ErrCodeConfiguration,
				fmt.Sprintf("invalid location %q", config.Location), err)
		}
		cfg.Loc = loc
	}
	if config.Charset != "" {
		cfg.Params = map[string]string{"charset": config.Charset}
	}
	return cfg.FormatDSN(), nil
}

func postgresDSN(config core.DBConfig) string {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 5432
	}
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	parts := []string{
		"host=" + quoteValue(host),
		"port=" + strconv.Itoa(port),
	}
	if config.Username != "" {
		parts = append(parts, "user="+quoteValue(config.Username))
	}
	if config.Password != "" {
		parts = append(parts, "password="+quoteValue(config.Password))
	}
	if config.Database != "" {
		parts = append(parts, "dbname="+quoteValue(config.Database))
	}
	parts = append(parts, "sslmode="+sslMode)
	return strings.Join(parts, " ")
}

// quoteValue 按 libpq 规则对含空格或引号的值加单引号
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func hostPort(host string, port, defaultPort int) string {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
