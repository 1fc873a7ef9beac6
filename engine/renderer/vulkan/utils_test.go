package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
)

func TestVulkanResultToError(t *testing.T) {
	require.ErrorIs(t, VulkanResultToError(vk.ErrorDeviceLost), core.ErrDeviceLost)
	require.ErrorIs(t, VulkanResultToError(vk.ErrorOutOfDeviceMemory), core.ErrUnknown)
	require.ErrorIs(t, VulkanResultToError(vk.Result(-999)), core.ErrUnknown)
}

func TestVulkanResultString(t *testing.T) {
	require.Equal(t, "VK_SUCCESS", VulkanResultString(vk.Success))
	require.Equal(t, "VK_ERROR_DEVICE_LOST", VulkanResultString(vk.ErrorDeviceLost))
	require.Equal(t, "unrecognized VkResult", VulkanResultString(vk.Result(-999)))
}

func TestVulkanResultIsSuccess(t *testing.T) {
	require.True(t, VulkanResultIsSuccess(vk.Success))
	require.True(t, VulkanResultIsSuccess(vk.Timeout))
	require.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
	require.False(t, VulkanResultIsSuccess(vk.ErrorOutOfHostMemory))
}

func TestVulkanSafeString(t *testing.T) {
	require.Equal(t, "\x00", VulkanSafeString(""))
	require.Equal(t, "abc\x00", VulkanSafeString("abc"))
	require.Equal(t, "abc\x00", VulkanSafeString("abc\x00"))
}
