package volume

// BlockType is the one-byte id stored per cell.
type BlockType uint8

const (
	BlockAir BlockType = iota
	BlockBedrock
	BlockStone
	BlockDirt
	BlockGrass
	BlockSand
	BlockGravel
	BlockWater
	BlockLog
	BlockLeaves
	BlockTallGrass
	BlockFlower
	BlockCoalOre
	BlockIronOre
	BlockGlowstone
	BlockTorch
	BlockLava

	blockTypeCount
)

type blockKind uint8

const (
	kindEmpty blockKind = iota
	kindSolid
	kindCutout // solid geometry, but neighbours stay visible through it
	kindVegetation
	kindWater
)

type blockInfo struct {
	name     string
	kind     blockKind
	emission [4]float32 // rgb, intensity; zero for non-emissive
}

var blockTable = [blockTypeCount]blockInfo{
	BlockAir:       {name: "air", kind: kindEmpty},
	BlockBedrock:   {name: "bedrock", kind: kindSolid},
	BlockStone:     {name: "stone", kind: kindSolid},
	BlockDirt:      {name: "dirt", kind: kindSolid},
	BlockGrass:     {name: "grass", kind: kindSolid},
	BlockSand:      {name: "sand", kind: kindSolid},
	BlockGravel:    {name: "gravel", kind: kindSolid},
	BlockWater:     {name: "water", kind: kindWater},
	BlockLog:       {name: "log", kind: kindSolid},
	BlockLeaves:    {name: "leaves", kind: kindCutout},
	BlockTallGrass: {name: "tall_grass", kind: kindVegetation},
	BlockFlower:    {name: "flower", kind: kindVegetation},
	BlockCoalOre:   {name: "coal_ore", kind: kindSolid},
	BlockIronOre:   {name: "iron_ore", kind: kindSolid},
	BlockGlowstone: {name: "glowstone", kind: kindSolid, emission: [4]float32{1.0, 0.85, 0.55, 1.2}},
	BlockTorch:     {name: "torch", kind: kindVegetation, emission: [4]float32{1.0, 0.7, 0.35, 0.9}},
	BlockLava:      {name: "lava", kind: kindSolid, emission: [4]float32{1.0, 0.4, 0.1, 1.5}},
}

func (b BlockType) info() blockInfo {
	if b >= blockTypeCount {
		return blockInfo{name: "unknown", kind: kindSolid}
	}
	return blockTable[b]
}

func (b BlockType) String() string { return b.info().name }

// IsEmpty reports whether the cell counts as empty for occupancy.
func (b BlockType) IsEmpty() bool { return b == BlockAir }

// IsOpaque reports whether the block hides the faces of its neighbours.
func (b BlockType) IsOpaque() bool { return b.info().kind == kindSolid }

// IsSolidGeometry reports whether the block is meshed into the solid arena.
func (b BlockType) IsSolidGeometry() bool {
	k := b.info().kind
	return k == kindSolid || k == kindCutout
}

func (b BlockType) IsVegetation() bool { return b.info().kind == kindVegetation }

func (b BlockType) IsWater() bool { return b.info().kind == kindWater }

// Emission returns the light colour and intensity of an emissive block.
func (b BlockType) Emission() (rgb [3]float32, intensity float32, ok bool) {
	e := b.info().emission
	if e[3] <= 0 {
		return rgb, 0, false
	}
	return [3]float32{e[0], e[1], e[2]}, e[3], true
}
