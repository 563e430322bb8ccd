package mc

// Идентификаторы блоков воды
const (
	FlowingWaterBlockID uint16 = 8
	StillWaterBlockID   uint16 = 9
)

// BlockFlags выбирает, какие атрибуты блока читать из чанка
type BlockFlags uint8

const (
	GetID BlockFlags = 1 << iota
	GetData
	GetBiome
	GetBlockLight
	GetSkyLight

	GetAll = GetID | GetData | GetBiome | GetBlockLight | GetSkyLight
)

// Has сообщает, установлены ли все биты f2
func (f BlockFlags) Has(f2 BlockFlags) bool {
	return f&f2 == f2
}

// Block набор атрибутов одного блока.
// Нулевое значение означает воздух / отсутствие данных.
type Block struct {
	ID         uint16
	Data       uint16
	Biome      uint8
	BlockLight uint8
	SkyLight   uint8
}

// IsFullWater возвращает true для полного (не текущего) блока воды
func (b Block) IsFullWater() bool {
	return (b.ID == FlowingWaterBlockID || b.ID == StillWaterBlockID) && b.Data == 0
}
