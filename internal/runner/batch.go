package runner

// Batches groups commands for staggered start. Includes form the first batch;
// nodes follow in groups of at most size robots. size <= 0 starts all robots together.
func Batches(cmds []Command, size int) [][]Command {
	var includes []Command
	var robotOrder []int
	byRobot := map[int][]Command{}
	for _, c := range cmds {
		if c.Robot < 0 {
			includes = append(includes, c)
			continue
		}
		if _, ok := byRobot[c.Robot]; !ok {
			robotOrder = append(robotOrder, c.Robot)
		}
		byRobot[c.Robot] = append(byRobot[c.Robot], c)
	}

	var batches [][]Command
	if len(includes) > 0 {
		batches = append(batches, includes)
	}
	if size <= 0 {
		size = len(robotOrder)
	}
	for i := 0; i < len(robotOrder); i += size {
		end := i + size
		if end > len(robotOrder) {
			end = len(robotOrder)
		}
		var batch []Command
		for _, r := range robotOrder[i:end] {
			batch = append(batch, byRobot[r]...)
		}
		batches = append(batches, batch)
	}
	return batches
}
