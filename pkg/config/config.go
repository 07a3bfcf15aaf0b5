// pkg/config/config.go
//
// Resolved settings for certiwipe commands. Precedence, highest first:
// command-line flags, CERTIWIPE_* environment (including values loaded from
// the dotenv file), the YAML config file, then built-in defaults. Keys match
// flag names.

package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_cli"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/hiddenarea"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/journal"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/overwrite"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/purge"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "CERTIWIPE"
	DefaultConfigFile = "/etc/certiwipe/certiwipe.yaml"
	DefaultEnvFile    = "/etc/certiwipe/certiwipe.env"
	DefaultKeyPath    = "/etc/certiwipe/signing_key.pem"

	KeyConfig                = "config"
	KeyEnvFile               = "env-file"
	KeyBackend               = "backend"
	KeyImages                = "image"
	KeySysRoot               = "sysfs-root"
	KeyDrive                 = "drive"
	KeyMethod                = "method"
	KeyPasses                = "passes"
	KeyOutput                = "output"
	KeyKeyPath               = "key-path"
	KeyPublicKey             = "public-key"
	KeySampleCoverage        = "sample-coverage"
	KeyChiThreshold          = "chi-threshold"
	KeyHPAPermanent          = "hpa-permanent"
	KeyDCORestore            = "dco-restore"
	KeyEnhancedErase         = "enhanced-erase"
	KeyEraseTimeout          = "erase-timeout"
	KeyEmitFailedCertificate = "emit-failed-certificate"
	KeyForce                 = "force"
	KeyYes                   = "yes"
	KeyJournalDir            = "journal-dir"
	KeyLogLevel              = "log-level"
)

// Settings is the validated view of every configurable value.
type Settings struct {
	Backend    string   `mapstructure:"backend" validate:"oneof=linux image"`
	Images     []string `mapstructure:"image" validate:"required_if=Backend image"`
	SysRoot    string   `mapstructure:"sysfs-root"`
	JournalDir string   `mapstructure:"journal-dir" validate:"required"`
	LogLevel   string   `mapstructure:"log-level" validate:"oneof=debug info warn error"`

	Drive   string `mapstructure:"drive"`
	Method  string `mapstructure:"method" validate:"oneof=ClearZeros ClearRandom Purge"`
	Passes  int    `mapstructure:"passes" validate:"min=1,max=35"`
	Output  string `mapstructure:"output"`
	KeyPath string `mapstructure:"key-path" validate:"required"`

	SampleCoverage float64 `mapstructure:"sample-coverage" validate:"gte=0,lte=1"`
	ChiThreshold   float64 `mapstructure:"chi-threshold" validate:"gte=0"`

	HPAPermanent  bool          `mapstructure:"hpa-permanent"`
	DCORestore    bool          `mapstructure:"dco-restore"`
	EnhancedErase bool          `mapstructure:"enhanced-erase"`
	EraseTimeout  time.Duration `mapstructure:"erase-timeout" validate:"gte=0"`

	EmitFailedCertificate bool `mapstructure:"emit-failed-certificate"`
	Force                 bool `mapstructure:"force"`
	Yes                   bool `mapstructure:"yes"`
}

var validate = validator.New()

// settingKeys are bound to the environment explicitly so env-only values
// reach Unmarshal even when the command defines no matching flag.
var settingKeys = []string{
	KeyBackend, KeyImages, KeySysRoot, KeyJournalDir, KeyLogLevel,
	KeyDrive, KeyMethod, KeyPasses, KeyOutput, KeyKeyPath,
	KeySampleCoverage, KeyChiThreshold,
	KeyHPAPermanent, KeyDCORestore, KeyEnhancedErase, KeyEraseTimeout,
	KeyEmitFailedCertificate, KeyForce, KeyYes,
}

// SetDefaults installs the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackend, "linux")
	v.SetDefault(KeyJournalDir, journal.DefaultDir)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMethod, "ClearZeros")
	v.SetDefault(KeyPasses, 1)
	v.SetDefault(KeyKeyPath, DefaultKeyPath)
	v.SetDefault(KeyEnhancedErase, true)
}

// Load resolves settings for cmd. A missing default config or env file is
// not an error; a missing explicitly named one is.
func Load(cmd *cobra.Command) (*Settings, error) {
	v := viper.New()
	SetDefaults(v)
	cw_cli.SetViperEnvPrefix(v, EnvPrefix)
	if err := cw_cli.BindFlagsToViper(cmd, v); err != nil {
		return nil, cw_err.Wrapf(cw_err.KindConfig, err, "bind flags")
	}

	envFile, explicitEnv := v.GetString(KeyEnvFile), true
	if envFile == "" {
		envFile, explicitEnv = DefaultEnvFile, false
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicitEnv || !errors.Is(err, fs.ErrNotExist) {
			return nil, cw_err.Wrapf(cw_err.KindConfig, err, "load env file %s", envFile)
		}
	}

	cfgFile, explicitCfg := v.GetString(KeyConfig), true
	if cfgFile == "" {
		cfgFile, explicitCfg = DefaultConfigFile, false
	}
	if _, err := os.Stat(cfgFile); err == nil || explicitCfg {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, cw_err.Wrapf(cw_err.KindConfig, err, "read config file %s", cfgFile)
		}
	}

	for _, key := range settingKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, cw_err.Wrapf(cw_err.KindConfig, err, "bind env for %s", key)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, cw_err.Wrapf(cw_err.KindConfig, err, "decode settings")
	}
	if err := validate.Struct(&s); err != nil {
		return nil, cw_err.NewExpectedError(cw_err.Wrapf(cw_err.KindConfig, err, "invalid settings"))
	}
	return &s, nil
}

// PlatformOptions selects the device backend described by s.
func (s *Settings) PlatformOptions() platform.Options {
	return platform.Options{Backend: s.Backend, Images: s.Images, SysRoot: s.SysRoot}
}

// OverwriteOptions carries the verification tuning into the overwrite engine.
func (s *Settings) OverwriteOptions() overwrite.Options {
	return overwrite.Options{
		Sampling:     overwrite.Sampling{Coverage: s.SampleCoverage},
		ChiThreshold: s.ChiThreshold,
	}
}

// PurgeOptions maps the firmware erase settings.
func (s *Settings) PurgeOptions() purge.Options {
	return purge.Options{NormalOnly: !s.EnhancedErase, Timeout: s.EraseTimeout}
}

// HiddenAreaOptions maps the HPA and DCO switches.
func (s *Settings) HiddenAreaOptions() hiddenarea.Options {
	return hiddenarea.Options{HPAPermanent: s.HPAPermanent, DCORestore: s.DCORestore}
}
