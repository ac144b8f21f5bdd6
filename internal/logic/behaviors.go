package logic

import (
	"github.com/firebot/firebot/internal/hal"
)

// seek steers toward the flame. Center wins over left, left over right.
func (c *Controller) seek(flames hal.FlameState) hal.MotionCommand {
	var cmd hal.MotionCommand
	switch {
	case flames.Center:
		cmd = hal.Forward(c.set.SpeedNormal)
	case flames.Left:
		cmd = hal.TurnLeft(c.set.SpeedTurn)
	default:
		cmd = hal.TurnRight(c.set.SpeedTurn)
	}
	c.hal.Drive(cmd)
	return cmd
}

// patrol takes a fresh range reading and either avoids or cruises forward.
func (c *Controller) patrol(flames hal.FlameState) Decision {
	d := Decision{Flames: flames, Distance: c.hal.MeasureDistance()}
	if d.Distance < c.set.ObstacleDistance {
		d.Behavior = BehaviorAvoid
		c.avoid(d)
		return d
	}
	d.Behavior = BehaviorPatrol
	d.Command = hal.Forward(c.set.SpeedPatrol)
	c.hal.Drive(d.Command)
	return d
}

// avoid backs off and turns right. The choreography is fixed and open-loop;
// a single front sensor cannot tell which side the obstacle is on.
func (c *Controller) avoid(d Decision) {
	c.counts.Avoids++
	c.metrics.maneuver(BehaviorAvoid)
	c.log.Info().Float64("distance_cm", float64(d.Distance)).Msg("avoiding obstacle")

	c.hal.Drive(hal.Stop())
	c.emit(EventObstacle, d)
	c.sleep(c.set.AvoidPause)
	c.hal.Drive(hal.Backward(c.set.SpeedNormal))
	c.sleep(c.set.AvoidReverse)
	c.hal.Drive(hal.Stop())
	c.hal.Drive(hal.TurnRight(c.set.SpeedTurn))
	c.sleep(c.set.AvoidTurn)
	c.hal.Drive(hal.Stop())
}

// extinguish runs the pump for PumpDuration then backs away. The pump is
// switched off even if a HAL call panics mid-sequence.
func (c *Controller) extinguish(d Decision) {
	c.counts.Extinguishes++
	c.metrics.maneuver(BehaviorExtinguish)
	c.log.Info().Stringer("flames", d.Flames).Float64("distance_cm", float64(d.Distance)).Msg("extinguishing fire")
	c.emit(EventExtinguish, d)

	pumping := true
	defer func() {
		if pumping {
			c.hal.Pump(false)
		}
	}()

	c.hal.Pump(true)
	c.hal.Buzz(c.set.ExtinguishPulses)
	c.sleep(c.set.PumpDuration)
	c.hal.Pump(false)
	pumping = false

	c.hal.Drive(hal.Backward(c.set.SpeedNormal))
	c.sleep(c.set.ExtinguishReverse)
	c.hal.Drive(hal.Stop())
}
