package vehicle

import (
	"context"
	"errors"

	"github.com/backkem/teslable/pkg/protocol"
	"github.com/backkem/teslable/pkg/wire/universal"
)

const (
	security     = universal.DomainVehicleSecurity
	infotainment = universal.DomainInfotainment
)

// Wake wakes the vehicle.
func (c *Conn) Wake(ctx context.Context) (*protocol.Result, error) {
	return c.command(ctx, security, c.proto.Wake)
}

// Lock locks the vehicle.
func (c *Conn) Lock(ctx context.Context) (*protocol.Result, error) {
	return c.command(ctx, security, c.proto.Lock)
}

// Unlock unlocks the vehicle.
func (c *Conn) Unlock(ctx context.Context) (*protocol.Result, error) {
	return c.command(ctx, security, c.proto.Unlock)
}

// OpenTrunk opens the rear trunk.
func (c *Conn) OpenTrunk(ctx context.Context) (*protocol.Result, error) {
	return c.command(ctx, security, c.proto.OpenTrunk)
}

// CloseTrunk closes the rear trunk.
func (c *Conn) CloseTrunk(ctx context.Context) (*protocol.Result, error) {
	return c.command(ctx, security, c.proto.CloseTrunk)
}

// OpenFrunk opens the front trunk.
func (c *Conn) OpenFrunk(ctx context.Context) (*protocol.Result, error) {
	return c.command(ctx, security, c.proto.OpenFrunk)
}

// OpenChargePort opens the charge port door.
func (c *Conn) OpenChargePort(ctx context.Context) (*protocol.Result, error) {
	return c.command(ctx, security, c.proto.OpenChargePort)
}

// CloseChargePort closes the charge port door.
func (c *Conn) CloseChargePort(ctx context.Context) (*protocol.Result, error) {
	return c.command(ctx, security, c.proto.CloseChargePort)
}

// SetClimate turns climate control on or off.
func (c *Conn) SetClimate(ctx context.Context, on bool) (*protocol.Result, error) {
	return c.command(ctx, infotainment, func() (*protocol.Request, error) {
		return c.proto.SetClimate(on)
	})
}

// SetCharging starts or stops charging.
func (c *Conn) SetCharging(ctx context.Context, start bool) (*protocol.Result, error) {
	return c.command(ctx, infotainment, func() (*protocol.Request, error) {
		return c.proto.SetCharging(start)
	})
}

// SetChargeLimit sets the charge limit in percent.
func (c *Conn) SetChargeLimit(ctx context.Context, percent int32) (*protocol.Result, error) {
	return c.command(ctx, infotainment, func() (*protocol.Request, error) {
		return c.proto.SetChargeLimit(percent)
	})
}

// SetChargingAmps sets the charging current.
func (c *Conn) SetChargingAmps(ctx context.Context, amps int32) (*protocol.Result, error) {
	return c.command(ctx, infotainment, func() (*protocol.Request, error) {
		return c.proto.SetChargingAmps(amps)
	})
}

// Poll requests vehicle-security status and infotainment vehicle data and
// returns the updated state. Both requests are attempted; their errors are
// joined.
func (c *Conn) Poll(ctx context.Context) (State, error) {
	_, errSecurity := c.command(ctx, security, c.proto.VehicleSecurityStatus)
	_, errInfotainment := c.command(ctx, infotainment, c.proto.InfotainmentPoll)
	return c.State(), errors.Join(errSecurity, errInfotainment)
}
