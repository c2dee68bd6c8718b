package spawn

var platformCapabilities = Capabilities{
	NativeSpawn: true,
	ExecInPlace: true,
	SpawnChdir:  true,
}
