package spawn

var platformCapabilities = Capabilities{
	NativeSpawn: true,
	SpawnChdir:  true,
}
