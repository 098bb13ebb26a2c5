package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":3000"`
	DataPath     string `envconfig:"DATA_PATH" default:"/var/lib/tunnelpanel"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/var/lib/tunnelpanel/tunnelpanel.db"`
	PublicDir    string `envconfig:"PUBLIC_DIR" default:"./public"`
	LogPath      string `envconfig:"LOG_PATH" default:"/var/lib/tunnelpanel/tunnelpanel.log"`

	// JWTSecret signs bearer tokens. When empty a random secret is generated
	// at startup, which invalidates all outstanding tokens on restart.
	JWTSecret    string `envconfig:"JWT_SECRET" default:""`
	AuthDisabled bool   `envconfig:"AUTH_DISABLED" default:"false"`

	// Host command execution
	CommandTimeout string `envconfig:"COMMAND_TIMEOUT" default:"30s"`
	UseSudo        bool   `envconfig:"USE_SUDO" default:"true"`

	// Tunnel services
	ServiceCatalogPath string `envconfig:"SERVICE_CATALOG" default:""`
	StunnelPort        int    `envconfig:"STUNNEL_PORT" default:"443"`
	DropbearPort       int    `envconfig:"DROPBEAR_PORT" default:"2222"`

	ExpirySweepSchedule string `envconfig:"EXPIRY_SWEEP_SCHEDULE" default:"@hourly"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("TUNNELPANEL", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
