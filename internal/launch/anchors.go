package launch

// AnchorList is the fixed range-anchor layout given to every fake_range node.
// The sensor simulator parses it as YAML, so it is kept byte for byte.
const AnchorList = `
- {x: 0.0, y: 0.0, z: 1.0, oz:  0.1, sigma: 0.1}
- {x: 1.0, y: 1.0, z: 1.0, oz:  0.1, sigma: 0.1}
- {x: 0.0, y: 1.0, z: 1.0, oz:  0.1, sigma: 0.1}
- {x: 1.0, y: 0.0, z: 1.0, oz:  0.1, sigma: 0.1}
- {x: 0.0, y: 0.0, z: 1.1, oz: -0.1, sigma: 0.1}
- {x: 1.0, y: 1.0, z: 1.1, oz: -0.1, sigma: 0.1}
- {x: 0.0, y: 1.0, z: 1.1, oz: -0.1, sigma: 0.1}
- {x: 1.0, y: 0.0, z: 1.1, oz: -0.1, sigma: 0.1}
`
