package handshake

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"vigil/internal/domain"
	"vigil/internal/portresolver"
	"vigil/internal/store"
)

// Result identifies which branch the completion path took for a response
// payload. Discards are silent toward the device but observable to tests.
type Result int

const (
	// ResultBound: payload accepted, verified binding written.
	ResultBound Result = iota
	// ResultMalformed: payload failed decoding or field validation.
	ResultMalformed
	// ResultNegative: well-formed payload whose status was not "OK".
	ResultNegative
	// ResultIPMismatch: claimed IP disagrees with the observed source IP.
	ResultIPMismatch
	// ResultUnresolved: no connect event confirmed a source port.
	ResultUnresolved
)

func (r Result) String() string {
	switch r {
	case ResultBound:
		return "bound"
	case ResultMalformed:
		return "malformed"
	case ResultNegative:
		return "negative"
	case ResultIPMismatch:
		return "ip_mismatch"
	case ResultUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

const statusOK = "OK"

// Completer consumes decoded challenge responses and establishes verified
// bindings. Anything short of a fully validated response is discarded and
// never overwrites an existing binding.
type Completer struct {
	bindings       store.BindingStore
	resolver       *portresolver.Resolver
	logger         *slog.Logger
	resolverWindow time.Duration
}

func NewCompleter(bindings store.BindingStore, resolver *portresolver.Resolver, logger *slog.Logger, resolverWindow time.Duration) *Completer {
	return &Completer{
		bindings:       bindings,
		resolver:       resolver,
		logger:         logger,
		resolverWindow: resolverWindow,
	}
}

// CompleteResponse validates a base64 response payload of the form
// "deviceId:status:ip:port" delivered from observedIP and, on success,
// overwrites the device's verified binding (last-writer-wins).
//
// The port claimed inside the payload is informational: the resolver's
// log-observed value is authoritative, and the claimed IP must agree with
// the IP the transport actually saw. Network-observed truth wins over
// client-claimed data.
func (c *Completer) CompleteResponse(ctx context.Context, b64Payload, observedIP string, now time.Time) (Result, error) {
	raw, err := base64.StdEncoding.DecodeString(b64Payload)
	if err != nil {
		c.logger.Warn("response payload is not valid base64", "observed_ip", observedIP)
		return ResultMalformed, nil
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 4 {
		c.logger.Warn("response payload has wrong field count",
			"fields", len(parts), "observed_ip", observedIP)
		return ResultMalformed, nil
	}

	deviceID, status, claimedIP, claimedPort := parts[0], parts[1], parts[2], parts[3]
	if deviceID == "" || observedIP == "" {
		return ResultMalformed, nil
	}
	if status != statusOK {
		c.logger.Info("negative challenge response discarded",
			"device_id", deviceID, "status", status)
		return ResultNegative, nil
	}
	if claimedIP != observedIP {
		c.logger.Warn("claimed ip disagrees with observed source ip, discarding",
			"device_id", deviceID, "claimed_ip", claimedIP, "observed_ip", observedIP)
		return ResultIPMismatch, nil
	}

	port, err := c.resolver.Resolve(ctx, deviceID, observedIP, c.resolverWindow, now)
	if err != nil {
		c.logger.Warn("no connect event confirms a source port, discarding response",
			"device_id", deviceID, "observed_ip", observedIP)
		return ResultUnresolved, nil
	}
	if claimed, convErr := strconv.Atoi(claimedPort); convErr != nil || claimed != port {
		c.logger.Warn("claimed port disagrees with log-observed port, using observed",
			"device_id", deviceID, "claimed_port", claimedPort, "observed_port", port)
	}

	binding := domain.VerifiedBinding{
		DeviceID:      deviceID,
		IPAddr:        observedIP,
		Port:          port,
		LastCheckedAt: now,
	}
	if err := c.bindings.Save(ctx, binding); err != nil {
		return ResultBound, err
	}
	c.logger.Info("verified binding established",
		"device_id", deviceID, "ip", observedIP, "port", port)
	return ResultBound, nil
}
