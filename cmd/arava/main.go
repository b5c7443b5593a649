package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	appservices "github.com/carlosrabelo/arava/core/application/services"
	"github.com/carlosrabelo/arava/core/domain/entities"
	domainservices "github.com/carlosrabelo/arava/core/domain/services"
	"github.com/carlosrabelo/arava/core/infrastructure/config"
	"github.com/carlosrabelo/arava/core/infrastructure/crypto"
	"github.com/carlosrabelo/arava/core/infrastructure/memory"
	"github.com/carlosrabelo/arava/core/infrastructure/metrics"
	"github.com/carlosrabelo/arava/core/infrastructure/snmp"
	"github.com/carlosrabelo/arava/core/infrastructure/templates"
	"github.com/carlosrabelo/arava/core/infrastructure/transport"
	"github.com/carlosrabelo/arava/core/parser"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	yamlFile := flag.String("config", "config.yaml", "YAML configuration file")
	templateDir := flag.String("templates", "templates", "Parsing template directory")
	target := flag.String("target", "", "Device hostname or address (must match a device in YAML)")
	command := flag.String("command", "", "Command to execute on the target device")
	backup := flag.Bool("backup", false, "Capture a configuration snapshot of the target device")
	rollback := flag.String("rollback", "", "Snapshot ID to roll the target device back to")
	facts := flag.Bool("facts", false, "Collect device facts (version, brand, SNMP)")
	schedule := flag.Bool("schedule", false, "Run the configured backup schedules until interrupted")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	fmt.Printf("Arava %s (built %s)\n", version, buildTime)

	log, err := buildLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(findConfig(*yamlFile, log))
	if err != nil {
		log.Fatal("configuration rejected", zap.Error(err))
	}

	masterKey := cfg.MasterKey
	if masterKey == "" {
		// Ephemeral key: stored credentials from earlier runs will not
		// decrypt, but standalone use keeps working.
		masterKey, err = crypto.GenerateKey()
		if err != nil {
			log.Fatal("key generation failed", zap.Error(err))
		}
		log.Warn("no master key configured, generated an ephemeral one")
	}
	vault, err := crypto.NewVault([]byte(masterKey))
	if err != nil {
		log.Fatal("vault initialization failed", zap.Error(err))
	}

	devices := memory.NewDeviceRepository()
	byName := make(map[string]uuid.UUID)
	for _, entry := range cfg.Devices {
		device, err := deviceFromConfig(entry, vault)
		if err != nil {
			log.Fatal("device rejected", zap.String("device", entry.Hostname), zap.Error(err))
		}
		devices.Put(device)
		byName[entry.Hostname] = device.ID
		byName[entry.Target] = device.ID
	}

	m := metrics.New(prometheus.NewRegistry())
	resolver := domainservices.NewCredentialResolver(vault, log)
	detector := domainservices.NewBrandDetector(log)
	pool := transport.NewPool(cfg.PoolSize, log, m)
	chain := parser.NewDefaultChain(parser.NewTemplateIndex(templates.NewFSStore(*templateDir, log), log), log)
	probe := snmp.NewProbe(cfg.SNMPCommunity, uint16(cfg.SNMPPort), 0, log)

	automation := appservices.NewAutomationService(devices, resolver, detector, pool, chain, probe, m, log, appservices.AutomationOptions{
		Transport:        cfg.Transport,
		SocketTimeout:    cfg.SocketTimeout.Std(),
		TransportTimeout: cfg.TransportTimeout.Std(),
	})
	snapshots := appservices.NewSnapshotService(devices, memory.NewSnapshotStore(), automation, m, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *schedule {
		runScheduler(ctx, cfg, snapshots, byName, log)
		return
	}

	deviceID, ok := byName[*target]
	if *target == "" || !ok {
		fmt.Fprintln(os.Stderr, "Error: --target must name a device from the YAML configuration")
		flag.Usage()
		os.Exit(1)
	}

	switch {
	case *command != "":
		result := automation.ExecuteWithParsing(ctx, deviceID, nil, *command)
		printJSON(result)
		if result.Failed() {
			os.Exit(1)
		}
	case *backup:
		snapshot, diff, err := snapshots.Backup(ctx, deviceID, nil, appservices.BackupParams{
			CreatedBy:   "arava-cli",
			AutoCompare: true,
		})
		if err != nil {
			log.Fatal("backup failed", zap.Error(err))
		}
		printJSON(snapshot)
		if diff != nil {
			printJSON(diff)
		}
	case *rollback != "":
		snapshotID, err := uuid.Parse(*rollback)
		if err != nil {
			log.Fatal("invalid snapshot id", zap.String("value", *rollback))
		}
		op, err := snapshots.Rollback(ctx, deviceID, nil, snapshotID, appservices.RollbackParams{
			OperationLogID:        "arava-cli",
			ExecutedBy:            "arava-cli",
			CreateBackup:          true,
			ValidateAfterRollback: true,
		})
		printJSON(op)
		if err != nil {
			log.Fatal("rollback failed", zap.Error(err))
		}
	case *facts:
		report, err := automation.CollectFacts(ctx, deviceID, nil)
		if err != nil {
			log.Fatal("fact collection failed", zap.Error(err))
		}
		printJSON(report)
	default:
		fmt.Fprintln(os.Stderr, "Error: one of --command, --backup, --rollback, --facts or --schedule is required")
		flag.Usage()
		os.Exit(1)
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// findConfig searches the usual locations when the default path is not
// overridden.
func findConfig(yamlFile string, log *zap.Logger) string {
	if yamlFile != "config.yaml" {
		return yamlFile
	}
	candidates := []string{filepath.Join(".", "config.yaml")}
	if runtime.GOOS == "linux" {
		if userConfigDir, err := os.UserConfigDir(); err == nil {
			candidates = append(candidates, filepath.Join(userConfigDir, "arava", "config.yaml"))
		}
		candidates = append(candidates, "/etc/arava/config.yaml")
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			log.Debug("configuration file found", zap.String("path", path))
			return path
		}
	}
	return yamlFile
}

func deviceFromConfig(entry config.DeviceConfig, vault *crypto.Vault) (entities.Device, error) {
	device := entities.Device{
		ID:              uuid.New(),
		Hostname:        entry.Hostname,
		ManagementIP:    entry.Target,
		Platform:        entry.Platform,
		Brand:           entry.Brand,
		CLIUsername:     entry.Username,
		DynamicPassword: entry.DynamicPass,
	}
	if entry.Password != "" {
		sealed, err := vault.Encrypt(entry.Password)
		if err != nil {
			return entities.Device{}, fmt.Errorf("seal password: %w", err)
		}
		device.CLIPasswordEncrypted = sealed
	}
	if entry.EnablePassword != "" {
		sealed, err := vault.Encrypt(entry.EnablePassword)
		if err != nil {
			return entities.Device{}, fmt.Errorf("seal enable password: %w", err)
		}
		device.EnablePasswordEncrypted = sealed
	}
	return device, nil
}

func runScheduler(ctx context.Context, cfg *config.Config, snapshots *appservices.SnapshotService, byName map[string]uuid.UUID, log *zap.Logger) {
	scheduler := appservices.NewBackupScheduler(snapshots, log)
	for _, entry := range cfg.Schedules {
		ids := make([]uuid.UUID, 0, len(entry.Devices))
		for _, name := range entry.Devices {
			ids = append(ids, byName[name])
		}
		if err := scheduler.Add(ctx, appservices.ScheduleEntry{Cron: entry.Cron, Devices: ids}); err != nil {
			log.Fatal("schedule rejected", zap.String("cron", entry.Cron), zap.Error(err))
		}
	}
	log.Info("backup scheduler running", zap.Int("schedules", len(cfg.Schedules)))
	scheduler.Run(ctx)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
