// Package services orchestrates the domain services, session pool and
// parser chain into the workflows callers actually run: command
// execution, connectivity probes, configuration backup and rollback.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/entities"
	"github.com/carlosrabelo/arava/core/domain/ports"
	domainservices "github.com/carlosrabelo/arava/core/domain/services"
	"github.com/carlosrabelo/arava/core/infrastructure/metrics"
	"github.com/carlosrabelo/arava/core/infrastructure/snmp"
	"github.com/carlosrabelo/arava/core/infrastructure/transport"
	"github.com/carlosrabelo/arava/core/parser"
)

// SessionRunner is the slice of the session pool the workflows need.
type SessionRunner interface {
	WithSession(ctx context.Context, params transport.DialParams, fn func(ctx context.Context, session ports.SessionDriver) error) error
}

// SystemProber is the optional SNMP enrichment source for device facts.
type SystemProber interface {
	SystemInfo(ctx context.Context, host string) (snmp.SystemInfo, error)
}

// AutomationOptions carries the connection defaults the service applies
// to every device.
type AutomationOptions struct {
	Transport        string
	SocketTimeout    time.Duration
	TransportTimeout time.Duration
}

// AutomationService executes commands against devices and structures
// their output.
type AutomationService struct {
	devices  ports.DeviceRepository
	resolver *domainservices.CredentialResolver
	detector *domainservices.BrandDetector
	pool     SessionRunner
	chain    *parser.Chain
	probe    SystemProber
	metrics  *metrics.Metrics
	log      *zap.Logger
	opts     AutomationOptions
}

// NewAutomationService wires the execution workflow. probe and m may
// be nil.
func NewAutomationService(
	devices ports.DeviceRepository,
	resolver *domainservices.CredentialResolver,
	detector *domainservices.BrandDetector,
	pool SessionRunner,
	chain *parser.Chain,
	probe SystemProber,
	m *metrics.Metrics,
	log *zap.Logger,
	opts AutomationOptions,
) *AutomationService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Transport == "" {
		opts.Transport = transport.TransportSSH
	}
	return &AutomationService{
		devices:  devices,
		resolver: resolver,
		detector: detector,
		pool:     pool,
		chain:    chain,
		probe:    probe,
		metrics:  m,
		log:      log,
		opts:     opts,
	}
}

// ExecuteWithParsing runs one command on one device and parses the
// output. It always returns a result; failures are recorded in it, and
// a parse failure degrades the result to raw output without failing
// the execution.
func (s *AutomationService) ExecuteWithParsing(ctx context.Context, deviceID uuid.UUID, user *entities.UserCredentials, command string) entities.CommandExecutionResult {
	start := time.Now()
	result := entities.CommandExecutionResult{
		DeviceID: deviceID,
		Command:  command,
		Status:   entities.ExecutionFailed,
	}

	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}
	result.Hostname = device.Hostname

	creds, err := s.resolver.Resolve(ctx, device, user)
	if err != nil {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}
	brand, confidence := s.detector.Detect(device.Metadata(), "")

	var raw string
	err = s.pool.WithSession(ctx, s.dialParams(device, creds, brand), func(ctx context.Context, session ports.SessionDriver) error {
		output, sendErr := session.Send(ctx, command)
		if sendErr != nil {
			return sendErr
		}
		raw = output
		return nil
	})
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	s.metrics.CommandSent()
	s.resolver.ConsumeOTP(device.ID)

	result.Status = entities.ExecutionSuccess
	result.RawOutput = raw

	parsed := s.chain.Parse(raw, command, brand)
	parsed.Confidence = confidence
	if parsed.Success {
		result.ParsedData = parsed.Data
		result.ParseMethod = parsed.Method
	} else {
		result.ParseMethod = parser.MethodRawOnly
		result.ParseError = parsed.Error
	}
	return result
}

// ExecuteCommands runs several commands over a single session, with a
// per-command result. A command failure stops the sequence; commands
// not reached are not reported.
func (s *AutomationService) ExecuteCommands(ctx context.Context, deviceID uuid.UUID, user *entities.UserCredentials, commands []string) ([]entities.CommandExecutionResult, error) {
	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	creds, err := s.resolver.Resolve(ctx, device, user)
	if err != nil {
		return nil, err
	}
	brand, _ := s.detector.Detect(device.Metadata(), "")

	results := make([]entities.CommandExecutionResult, 0, len(commands))
	err = s.pool.WithSession(ctx, s.dialParams(device, creds, brand), func(ctx context.Context, session ports.SessionDriver) error {
		for _, command := range commands {
			start := time.Now()
			raw, sendErr := session.Send(ctx, command)
			result := entities.CommandExecutionResult{
				DeviceID:  device.ID,
				Hostname:  device.Hostname,
				Command:   command,
				Elapsed:   time.Since(start),
				RawOutput: raw,
			}
			if sendErr != nil {
				result.Status = entities.ExecutionFailed
				result.Error = sendErr.Error()
				results = append(results, result)
				return sendErr
			}
			s.metrics.CommandSent()
			result.Status = entities.ExecutionSuccess
			parsed := s.chain.Parse(raw, command, brand)
			if parsed.Success {
				result.ParsedData = parsed.Data
				result.ParseMethod = parsed.Method
			} else {
				result.ParseMethod = parser.MethodRawOnly
				result.ParseError = parsed.Error
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("device %s: %w", device.Hostname, err)
	}
	s.resolver.ConsumeOTP(device.ID)
	return results, nil
}

// ConnectivityReport is the outcome of a connectivity probe.
type ConnectivityReport struct {
	DeviceID  uuid.UUID     `json:"device_id"`
	Hostname  string        `json:"hostname"`
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

// TestConnectivity opens a session and runs the version command as a
// liveness probe.
func (s *AutomationService) TestConnectivity(ctx context.Context, deviceID uuid.UUID, user *entities.UserCredentials) ConnectivityReport {
	start := time.Now()
	result := s.ExecuteWithParsing(ctx, deviceID, user, "show version")
	return ConnectivityReport{
		DeviceID:  deviceID,
		Hostname:  result.Hostname,
		Reachable: !result.Failed(),
		Latency:   time.Since(start),
		Error:     result.Error,
	}
}

// DeviceFacts is the classification summary of one device.
type DeviceFacts struct {
	DeviceID   uuid.UUID        `json:"device_id"`
	Hostname   string           `json:"hostname"`
	Brand      string           `json:"brand"`
	Confidence float64          `json:"confidence"`
	Version    string           `json:"version,omitempty"`
	Uptime     string           `json:"uptime,omitempty"`
	SNMP       *snmp.SystemInfo `json:"snmp,omitempty"`
}

// CollectFacts gathers version facts over CLI and refines brand
// detection with the captured output. When the CLI yields nothing and
// an SNMP probe is configured, the system group fills the gaps.
func (s *AutomationService) CollectFacts(ctx context.Context, deviceID uuid.UUID, user *entities.UserCredentials) (DeviceFacts, error) {
	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return DeviceFacts{}, err
	}

	result := s.ExecuteWithParsing(ctx, deviceID, user, "show version")
	if result.Failed() {
		return DeviceFacts{}, fmt.Errorf("device %s: %s", device.Hostname, result.Error)
	}

	brand, confidence := s.detector.Detect(device.Metadata(), result.RawOutput)
	facts := DeviceFacts{
		DeviceID:   device.ID,
		Hostname:   device.Hostname,
		Brand:      brand,
		Confidence: confidence,
	}
	for _, record := range result.ParsedData {
		if facts.Version == "" {
			facts.Version = record["version"]
		}
		if facts.Uptime == "" {
			facts.Uptime = record["uptime"]
		}
	}

	if facts.Version == "" && s.probe != nil {
		info, probeErr := s.probe.SystemInfo(ctx, device.ManagementIP)
		if probeErr != nil {
			s.log.Debug("snmp enrichment failed",
				zap.String("device", device.Hostname),
				zap.Error(probeErr))
		} else {
			facts.SNMP = &info
			if facts.Brand == "" {
				facts.Brand = s.detector.DetectFromOutput(info.Description)
				if facts.Brand != "" {
					facts.Confidence = 0.85
				}
			}
		}
	}
	return facts, nil
}

// ExecuteBatch runs one command across many devices with bounded
// parallelism. Cancelling the context stops new sessions from starting
// while in-flight ones finish; devices never started are reported as
// failed with the cancellation error.
func (s *AutomationService) ExecuteBatch(ctx context.Context, deviceIDs []uuid.UUID, user *entities.UserCredentials, command string, parallelism int) []entities.CommandExecutionResult {
	if parallelism <= 0 {
		parallelism = 1
	}
	results := make([]entities.CommandExecutionResult, len(deviceIDs))
	slots := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i, deviceID := range deviceIDs {
		if err := ctx.Err(); err != nil {
			results[i] = entities.CommandExecutionResult{
				DeviceID: deviceID,
				Command:  command,
				Status:   entities.ExecutionFailed,
				Error:    err.Error(),
			}
			continue
		}
		wg.Add(1)
		slots <- struct{}{}
		go func(i int, deviceID uuid.UUID) {
			defer wg.Done()
			defer func() { <-slots }()
			results[i] = s.ExecuteWithParsing(ctx, deviceID, user, command)
		}(i, deviceID)
	}
	wg.Wait()
	return results
}

// RetrieveConfiguration pulls the full running configuration of a
// device using its vendor's show command.
func (s *AutomationService) RetrieveConfiguration(ctx context.Context, device entities.Device, user *entities.UserCredentials) (string, error) {
	creds, err := s.resolver.Resolve(ctx, device, user)
	if err != nil {
		return "", err
	}
	brand, _ := s.detector.Detect(device.Metadata(), "")
	commands := transport.CommandsFor(transport.SelectVariant(brand, device.Platform))

	var content string
	err = s.pool.WithSession(ctx, s.dialParams(device, creds, brand), func(ctx context.Context, session ports.SessionDriver) error {
		output, sendErr := session.Send(ctx, commands.ShowConfig)
		if sendErr != nil {
			return sendErr
		}
		content = output
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("retrieve configuration of %s: %w", device.Hostname, err)
	}
	s.metrics.CommandSent()
	s.resolver.ConsumeOTP(device.ID)

	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("device %s returned an empty configuration", device.Hostname)
	}
	return content, nil
}

// PushConfiguration applies configuration lines through the vendor's
// config mode and saves. The device is assumed to overwrite matching
// statements rather than append.
func (s *AutomationService) PushConfiguration(ctx context.Context, device entities.Device, user *entities.UserCredentials, content string) error {
	creds, err := s.resolver.Resolve(ctx, device, user)
	if err != nil {
		return err
	}
	brand, _ := s.detector.Detect(device.Metadata(), "")
	commands := transport.CommandsFor(transport.SelectVariant(brand, device.Platform))

	err = s.pool.WithSession(ctx, s.dialParams(device, creds, brand), func(ctx context.Context, session ports.SessionDriver) error {
		if _, sendErr := session.Send(ctx, commands.ConfigEnter); sendErr != nil {
			return fmt.Errorf("enter config mode: %w", sendErr)
		}
		for _, line := range strings.Split(content, "\n") {
			line = strings.TrimRight(line, " \r")
			if line == "" {
				continue
			}
			if _, sendErr := session.Send(ctx, line); sendErr != nil {
				return fmt.Errorf("apply %q: %w", line, sendErr)
			}
		}
		if _, sendErr := session.Send(ctx, commands.ConfigExit); sendErr != nil {
			return fmt.Errorf("leave config mode: %w", sendErr)
		}
		if _, sendErr := session.Send(ctx, commands.Save); sendErr != nil {
			return fmt.Errorf("save configuration: %w", sendErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("push configuration to %s: %w", device.Hostname, err)
	}
	s.resolver.ConsumeOTP(device.ID)
	return nil
}

func (s *AutomationService) dialParams(device entities.Device, creds entities.ResolvedCredentials, brand string) transport.DialParams {
	return transport.DialParams{
		Host:             creds.Hostname,
		Port:             creds.Port,
		Username:         creds.Username,
		Password:         creds.Password,
		EnableSecret:     creds.EnablePassword,
		Transport:        s.opts.Transport,
		Brand:            brand,
		Platform:         device.Platform,
		SocketTimeout:    s.opts.SocketTimeout,
		TransportTimeout: s.opts.TransportTimeout,
	}
}
