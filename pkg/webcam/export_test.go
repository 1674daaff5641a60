package webcam

// SlotOwners reports, per buffer index, whether the driver or the
// application holds it.
func (c *Camera) SlotOwners() []string {
	if c.pool == nil {
		return nil
	}
	owners := make([]string, len(c.pool.slots))
	for i, s := range c.pool.slots {
		owners[i] = s.owner.String()
	}
	return owners
}
