package brc20mint

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ordkit/brc20mint/brc20"
	"github.com/ordkit/brc20mint/build"
	"github.com/ordkit/brc20mint/chainfee"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/ordkit/brc20mint/funding"
	"github.com/ordkit/brc20mint/inscribe"
	"github.com/ordkit/brc20mint/lnutils"
)

const (
	defaultConfigFilename = "brc20mint.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "brc20mint.log"
	defaultSessionDBName  = "sessions.db"

	defaultLogLevel       = "info"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	defaultNetwork        = "mainnet"
	defaultAPIURL         = "https://open-api.unisat.io"
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 3

	defaultFeeRate       = 2
	defaultCommitFeeRate = 1
	defaultGasAddrType   = "p2wpkh"
)

var (
	// DefaultAppDir is the default directory for config, data and logs.
	DefaultAppDir = btcutil.AppDataDir("brc20mint", false)

	// DefaultConfigFile is the default full path of the config file.
	DefaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)

	defaultDataDir = filepath.Join(DefaultAppDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(DefaultAppDir, defaultLogDirname)

	// networks maps the --network choices to their parameters.
	networks = map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"signet":  &chaincfg.SigNetParams,
		"regtest": &chaincfg.RegressionNetParams,
	}
)

// Config is the configuration of a mint run.
//
//nolint:ll
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Print the version and exit"`

	AppDir         string `long:"appdir" description:"The base directory that contains the config file, data and logs"`
	ConfigFile     string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir        string `short:"b" long:"datadir" description:"The directory to store the session journal within"`
	LogDir         string `long:"logdir" description:"Directory the per network log files are written to"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Number of rolled log files to keep, 0 keeps none"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Size in MB at which the log file is rolled"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	Network string `long:"network" description:"The network to mint on" choice:"mainnet" choice:"testnet" choice:"signet" choice:"regtest"`

	APIURL         string        `long:"apiurl" description:"Base URL of the ordinals indexer API"`
	APIKey         string        `long:"apikey" description:"API key sent as bearer token"`
	RequestTimeout time.Duration `long:"requesttimeout" description:"Timeout of a single API request"`
	MaxRetries     int           `long:"maxretries" description:"Retries of failed API requests"`

	Tick   string `long:"tick" description:"BRC-20 ticker to mint"`
	Amount string `long:"amount" description:"Amount to mint"`

	ParentID    string `long:"parentid" description:"Inscription id (<txid>i<index>) of the ticker's parent inscription"`
	ParentWIF   string `long:"parentwif" description:"WIF key of the parent inscription owner"`
	GasWIF      string `long:"gaswif" description:"WIF key of the wallet paying the commit transaction"`
	GasAddrType string `long:"gasaddrtype" description:"Address type of the gas wallet" choice:"p2tr" choice:"p2wpkh" choice:"np2wpkh" choice:"p2pkh"`
	InscribeWIF string `long:"inscribewif" description:"WIF key the commitment is derived from"`
	MintTo      string `long:"mintto" description:"Address receiving the minted inscription"`

	FeeRate       uint64 `long:"feerate" description:"Reveal fee rate in sat/vbyte"`
	CommitFeeRate uint64 `long:"commitfeerate" description:"Commit fee rate in sat/vbyte"`
	Value         int64  `long:"value" description:"Value of the inscription output in satoshis"`
	RevealVSize   int64  `long:"revealvsize" description:"Reveal size in vbytes the commit pays fees for, 0 to estimate"`

	DryRun bool `long:"dryrun" description:"Build and sign both transactions without broadcasting"`

	// ActiveNetParams is the selected network.
	ActiveNetParams *chaincfg.Params

	// The decoded keys and addresses.
	parentKey   *btcec.PrivateKey
	gasKey      *btcec.PrivateKey
	inscribeKey *btcec.PrivateKey
	gasAddrType funding.AddressType
	mintTo      btcutil.Address
	parentID    envelope.InscriptionID
}

// DefaultConfig returns a Config holding every default value.
func DefaultConfig() Config {
	return Config{
		AppDir:         DefaultAppDir,
		ConfigFile:     DefaultConfigFile,
		DataDir:        defaultDataDir,
		LogDir:         defaultLogDir,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		Network:        defaultNetwork,
		APIURL:         defaultAPIURL,
		RequestTimeout: defaultRequestTimeout,
		MaxRetries:     defaultMaxRetries,
		GasAddrType:    defaultGasAddrType,
		FeeRate:        defaultFeeRate,
		CommitFeeRate:  defaultCommitFeeRate,
		Value:          int64(chainfee.DustLimit),
	}
}

// LoadConfig builds the run configuration. Defaults are overridden by the
// config file, which is in turn overridden by command line flags. The log
// rotator is started once the result has been validated.
func LoadConfig() (*Config, error) {
	// A first pass over the flags only looks for --configfile, --appdir
	// and --version.
	preCfg := DefaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", build.Version(),
			"commit="+build.Commit)
		os.Exit(0)
	}

	// A custom appdir moves the default config file along with it.
	configFileDir := CleanAndExpandPath(preCfg.AppDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultAppDir && configFilePath == DefaultConfigFile {
		configFilePath = filepath.Join(
			configFileDir, defaultConfigFilename,
		)
	}

	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// A missing file is fine, a malformed one is not.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Flags win over the file.
	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	cleanCfg, err := ValidateConfig(cfg, usageMessage)
	if err != nil {
		return nil, err
	}

	// Each network logs into its own directory.
	logFile := filepath.Join(
		cleanCfg.LogDir, cleanCfg.Network, defaultLogFilename,
	)
	err = logRotator.InitLogRotator(&build.FileLoggerConfig{
		MaxLogFiles:    cleanCfg.MaxLogFiles,
		MaxLogFileSize: cleanCfg.MaxLogFileSize,
	}, logFile)
	if err != nil {
		return nil, err
	}

	err = build.ParseAndSetDebugLevels(
		cleanCfg.DebugLevel, &logManager{loggers: subsystemLoggers},
	)
	if err != nil {
		str := "error parsing debug level: %v\n%s"
		return nil, fmt.Errorf(str, err, usageMessage)
	}

	// Only now is the logger able to report a missing config file.
	if configFileError != nil {
		mintLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig checks cfg and returns a copy with normalized paths, the
// network parameters selected and every key and address decoded. The data
// directory of the network is created if missing.
func ValidateConfig(cfg Config, usageMessage string) (*Config, error) {
	// A custom appdir relocates data and logs underneath it.
	appDir := CleanAndExpandPath(cfg.AppDir)
	if appDir != DefaultAppDir {
		cfg.DataDir = filepath.Join(appDir, defaultDataDirname)
		cfg.LogDir = filepath.Join(appDir, defaultLogDirname)
	}

	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)

	mkErr := func(format string, args ...interface{}) error {
		str := "ValidateConfig: " + format + "\n" + usageMessage
		return fmt.Errorf(str, args...)
	}

	params, ok := networks[cfg.Network]
	if !ok {
		return nil, mkErr("unknown network %q", cfg.Network)
	}
	cfg.ActiveNetParams = params

	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.Network)
	if err := lnutils.CreateDir(cfg.DataDir, 0700); err != nil {
		return nil, mkErr("unable to create data dir: %v", err)
	}

	if cfg.MaxLogFiles < 0 || cfg.MaxLogFileSize <= 0 {
		return nil, mkErr("invalid log rotation settings")
	}

	switch {
	case cfg.APIURL == "":
		return nil, mkErr("--apiurl is required")
	case cfg.RequestTimeout <= 0:
		return nil, mkErr("--requesttimeout must be positive")
	case cfg.MaxRetries < 0:
		return nil, mkErr("--maxretries must not be negative")
	}
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")

	mint := brc20.Mint{Tick: cfg.Tick, Amt: cfg.Amount}
	if err := mint.Validate(); err != nil {
		return nil, mkErr("invalid mint: %v", err)
	}

	if cfg.ParentID == "" {
		return nil, mkErr("--parentid is required")
	}
	// The indexer looks parents up by inscription id, an outpoint would
	// be sent as the id of another inscription.
	if strings.Contains(cfg.ParentID, ":") {
		return nil, mkErr("--parentid %q is an outpoint, use the "+
			"inscription id <txid>i<index>", cfg.ParentID)
	}
	parentID, err := envelope.ParseParentRef(cfg.ParentID)
	if err != nil {
		return nil, mkErr("invalid --parentid: %v", err)
	}
	cfg.parentID = parentID

	keys := []struct {
		name string
		wif  string
		key  **btcec.PrivateKey
	}{
		{"parentwif", cfg.ParentWIF, &cfg.parentKey},
		{"gaswif", cfg.GasWIF, &cfg.gasKey},
		{"inscribewif", cfg.InscribeWIF, &cfg.inscribeKey},
	}
	for _, k := range keys {
		if k.wif == "" {
			return nil, mkErr("--%s is required", k.name)
		}

		decoded, err := btcutil.DecodeWIF(k.wif)
		if err != nil {
			return nil, mkErr("invalid --%s: %v", k.name, err)
		}
		if !decoded.IsForNet(params) {
			return nil, mkErr("--%s is not for %s", k.name,
				cfg.Network)
		}
		*k.key = decoded.PrivKey
	}

	cfg.gasAddrType, err = funding.ParseAddressType(cfg.GasAddrType)
	if err != nil {
		return nil, mkErr("invalid --gasaddrtype: %v", err)
	}

	if cfg.MintTo == "" {
		return nil, mkErr("--mintto is required")
	}
	cfg.mintTo, err = btcutil.DecodeAddress(cfg.MintTo, params)
	if err != nil {
		return nil, mkErr("invalid --mintto: %v", err)
	}
	if !cfg.mintTo.IsForNet(params) {
		return nil, mkErr("--mintto is not a %s address", cfg.Network)
	}

	switch {
	case cfg.FeeRate == 0:
		return nil, mkErr("--feerate must be positive")
	case cfg.CommitFeeRate == 0:
		return nil, mkErr("--commitfeerate must be positive")
	case cfg.Value < int64(chainfee.DustLimit):
		return nil, mkErr("--value %d is below the dust limit %d",
			cfg.Value, chainfee.DustLimit)
	case cfg.RevealVSize < 0:
		return nil, mkErr("--revealvsize must not be negative")
	}

	return &cfg, nil
}

// order builds the inscription order of the mint around the resolved parent.
func (c *Config) order(parent *inscribe.ParentReference) (*inscribe.Order,
	error) {

	mint := brc20.Mint{Tick: c.Tick, Amt: c.Amount}
	dataURL, err := mint.DataURL()
	if err != nil {
		return nil, err
	}

	return &inscribe.Order{
		Files: []inscribe.InscribeFile{{
			DataURL: dataURL,
			Address: c.mintTo,
			Parent:  fn.Some(parent.ID),
		}},
		Value:   btcutil.Amount(c.Value),
		FeeRate: chainfee.SatPerVByte(c.FeeRate),
		PrivKey: c.inscribeKey,
		Parent:  *parent,
	}, nil
}

// CleanAndExpandPath resolves a leading ~ and $VARIABLE references in path
// and cleans the result. An empty path stays empty.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(path, "~"); ok {
		homeDir := os.Getenv("HOME")
		if u, err := user.Current(); err == nil {
			homeDir = u.HomeDir
		}
		path = homeDir + rest
	}

	// Only POSIX style $VARIABLE references are expanded.
	return filepath.Clean(os.ExpandEnv(path))
}
